// Package main runs the feature pipeline as a long-lived service:
// the panel is rebuilt on a schedule and status/metrics are served over HTTP.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"market-feature-lab/internal/config"
	"market-feature-lab/internal/logging"
	"market-feature-lab/internal/observability"
	"market-feature-lab/internal/pipeline"
)

// Server holds the scheduler state.
type Server struct {
	cfg      *config.Config
	interval time.Duration
	logger   *slog.Logger

	mu         sync.Mutex
	started    time.Time
	lastRun    time.Time
	lastError  string
	lastRows   int
	lastCols   int
	skipped    []string
	running    bool
	runs       int
	failedRuns int
}

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults apply when empty)")
	interval := flag.Duration("interval", 24*time.Hour, "Pipeline run interval")
	addr := flag.String("addr", ":9090", "HTTP address for health, status and metrics")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger, flush := logging.New(cfg.Log.Production)
	defer flush()

	ctx, cancel := context.WithCancel(context.Background())

	server := &Server{
		cfg:      cfg,
		interval: *interval,
		logger:   logger,
		started:  time.Now(),
	}

	done := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Warn("received signal, initiating graceful shutdown", "signal", sig.String())
			cancel()
		case <-done:
			return
		}

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Error("received second signal, forcing immediate shutdown", "signal", sig.String())
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Error("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	go server.startHTTPServer(*addr)

	err = server.runScheduler(ctx)
	close(done)
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server error", "error", err)
		flush()
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// runScheduler runs the pipeline immediately and then every interval.
func (s *Server) runScheduler(ctx context.Context) error {
	s.logger.Info("starting pipeline scheduler", "interval", s.interval.String())

	s.runPipeline(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runPipeline(ctx)
		}
	}
}

// runPipeline executes one build, skipping if one is still in flight.
func (s *Server) runPipeline(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("pipeline already running, skipping")
		return
	}
	s.running = true
	s.mu.Unlock()

	result, err := s.build(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.lastRun = time.Now()
	s.runs++
	if err != nil {
		s.failedRuns++
		s.lastError = err.Error()
		s.logger.Error("pipeline failed", "error", err)
		return
	}
	s.lastError = ""
	s.lastRows = result.Panel.NumRows()
	s.lastCols = result.Panel.NumColumns()
	s.skipped = result.Skipped
}

func (s *Server) build(ctx context.Context) (*pipeline.Result, error) {
	src, err := pipeline.OpenSources(ctx, s.cfg)
	if err != nil {
		return nil, fmt.Errorf("open sources: %w", err)
	}
	defer src.Close()

	store, closeStore, err := pipeline.OpenPanelStore(ctx, s.cfg)
	if err != nil {
		return nil, fmt.Errorf("open panel store: %w", err)
	}
	defer closeStore()

	opts, err := pipeline.NewOptions(s.cfg, src, store, s.logger)
	if err != nil {
		return nil, err
	}
	return pipeline.Run(ctx, opts)
}

// startHTTPServer starts the HTTP server for health/metrics/status.
func (s *Server) startHTTPServer(addr string) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", s.handleStatus)

	s.logger.Info("starting HTTP server", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("HTTP server error", "error", err)
	}
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status      string    `json:"status"`
	Uptime      string    `json:"uptime"`
	Panel       string    `json:"panel"`
	Backend     string    `json:"backend"`
	LastRun     time.Time `json:"last_run,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	Rows        int       `json:"rows"`
	Columns     int       `json:"columns"`
	Skipped     []string  `json:"skipped,omitempty"`
	Runs        int       `json:"runs"`
	FailedRuns  int       `json:"failed_runs"`
	Running     bool      `json:"running"`
	IntervalStr string    `json:"interval"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := StatusResponse{
		Status:      "running",
		Uptime:      time.Since(s.started).Round(time.Second).String(),
		Panel:       s.cfg.Storage.PanelName,
		Backend:     s.cfg.Storage.Backend,
		LastRun:     s.lastRun,
		LastError:   s.lastError,
		Rows:        s.lastRows,
		Columns:     s.lastCols,
		Skipped:     s.skipped,
		Runs:        s.runs,
		FailedRuns:  s.failedRuns,
		Running:     s.running,
		IntervalStr: s.interval.String(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

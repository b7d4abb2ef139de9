// Package main builds the feature panel: fetch -> features -> assemble -> persist.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"market-feature-lab/internal/config"
	"market-feature-lab/internal/logging"
	"market-feature-lab/internal/observability"
	"market-feature-lab/internal/pipeline"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults apply when empty)")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (overrides config)")
	storageBackend := flag.String("storage", "", "Panel storage backend: csv, postgres, clickhouse, memory (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}
	if *storageBackend != "" {
		cfg.Storage.Backend = *storageBackend
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
			os.Exit(1)
		}
	}

	logger, flush := logging.New(cfg.Log.Production)
	defer flush()

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Warn("received signal, cancelling pipeline", "signal", sig.String())
		cancel()
	}()

	if cfg.Metrics.Addr != "" {
		serveMetrics(cfg.Metrics.Addr, logger)
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("pipeline failed", "error", err)
		flush()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	src, err := pipeline.OpenSources(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open sources: %w", err)
	}
	defer src.Close()

	store, closeStore, err := pipeline.OpenPanelStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open panel store: %w", err)
	}
	defer closeStore()

	opts, err := pipeline.NewOptions(cfg, src, store, logger)
	if err != nil {
		return err
	}

	result, err := pipeline.Run(ctx, opts)
	if err != nil {
		return err
	}

	fmt.Println("Pipeline completed:")
	fmt.Printf("  Panel: %s (%s backend)\n", cfg.Storage.PanelName, cfg.Storage.Backend)
	fmt.Printf("  Rows: %d\n", result.Panel.NumRows())
	fmt.Printf("  Columns: %d\n", result.Panel.NumColumns())
	fmt.Printf("  Instruments: %v\n", result.Instruments)
	fmt.Printf("  Indicators: %d\n", len(result.Indicators))
	if len(result.Skipped) > 0 {
		fmt.Printf("  Skipped: %v\n", result.Skipped)
	}
	return nil
}

func serveMetrics(addr string, logger *slog.Logger) {
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler())
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok"))
		})
		logger.Info("starting metrics server", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()
}

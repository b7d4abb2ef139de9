// Package main archives upstream price and indicator series into Postgres
// so later pipeline runs can read them with sources.backend=postgres.
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
	"sort"
	"syscall"
	"time"

	"market-feature-lab/internal/config"
	"market-feature-lab/internal/domain"
	"market-feature-lab/internal/logging"
	"market-feature-lab/internal/observability"
	"market-feature-lab/internal/pipeline"
	"market-feature-lab/internal/storage"
	"market-feature-lab/internal/storage/memory"
	"market-feature-lab/internal/storage/migrations"
	pgstore "market-feature-lab/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults apply when empty)")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL archive DSN (overrides sources.postgres_dsn)")
	from := flag.String("from", "", "First date to archive, YYYY-MM-DD (default: calendar start)")
	to := flag.String("to", "", "Last date to archive, YYYY-MM-DD (default: calendar end)")
	useMemory := flag.Bool("use-memory", false, "Archive into memory instead of PostgreSQL (dry run)")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *postgresDSN != "" {
		cfg.Sources.PostgresDSN = *postgresDSN
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}

	logger, flush := logging.New(cfg.Log.Production)
	defer flush()

	if cfg.Metrics.Addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			logger.Info("starting metrics server", "addr", cfg.Metrics.Addr)
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
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

	err = run(ctx, cfg, logger, *from, *to, *useMemory)
	close(done)
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("ingest failed", "error", err)
		flush()
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, fromStr, toStr string, useMemory bool) error {
	if cfg.Sources.Backend == "postgres" {
		return errors.New("ingest reads upstream sources; set sources.backend to http or csv")
	}
	start, end, err := cfg.Calendar.Bounds()
	if err != nil {
		return fmt.Errorf("calendar: %w", err)
	}
	if fromStr != "" {
		if start, err = domain.ParseDay(fromStr); err != nil {
			return fmt.Errorf("--from: %w", err)
		}
	}
	if toStr != "" {
		if end, err = domain.ParseDay(toStr); err != nil {
			return fmt.Errorf("--to: %w", err)
		}
	}
	if end.Before(start) {
		return fmt.Errorf("--to %s before --from %s", end.Format(domain.DateLayout), start.Format(domain.DateLayout))
	}

	src, err := pipeline.OpenSources(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open sources: %w", err)
	}
	defer src.Close()

	// Require a DSN unless --use-memory is explicitly set
	if !useMemory && cfg.Sources.PostgresDSN == "" {
		return errors.New("sources.postgres_dsn or --postgres-dsn is required (use --use-memory for a dry run)")
	}

	var priceStore storage.PriceStore = memory.NewPriceStore()
	var indicatorStore storage.IndicatorStore = memory.NewIndicatorStore()
	if !useMemory {
		pool, err := pgstore.NewPool(ctx, cfg.Sources.PostgresDSN)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return err
		}
		priceStore = pgstore.NewPriceStore(pool)
		indicatorStore = pgstore.NewIndicatorStore(pool)
	}

	indicators := make([]pipeline.Indicator, 0, len(cfg.Indicators))
	for _, ind := range cfg.Indicators {
		indicators = append(indicators, pipeline.Indicator{Alias: ind.Alias, Code: ind.Code})
	}

	logger.Info("starting ingest",
		"from", start.Format(domain.DateLayout),
		"to", end.Format(domain.DateLayout),
		"instruments", len(cfg.Instruments),
		"indicators", len(indicators),
	)
	result, err := pipeline.Ingest(ctx, pipeline.IngestOptions{
		Instruments:    cfg.Instruments,
		Indicators:     indicators,
		Prices:         src.Prices,
		Macro:          src.Macro,
		PriceStore:     priceStore,
		IndicatorStore: indicatorStore,
		Start:          start,
		End:            end,
		Workers:        cfg.Sources.Workers,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(result.Stored))
	for id := range result.Stored {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Println("Ingest completed:")
	for _, id := range ids {
		fmt.Printf("  %s: %d points\n", id, result.Stored[id])
	}
	if len(result.UpToDate) > 0 {
		fmt.Printf("  Up to date: %v\n", result.UpToDate)
	}
	if len(result.Skipped) > 0 {
		fmt.Printf("  Skipped: %v\n", result.Skipped)
	}
	return nil
}

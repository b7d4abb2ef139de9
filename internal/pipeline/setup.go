package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"market-feature-lab/internal/config"
	"market-feature-lab/internal/domain"
	"market-feature-lab/internal/features"
	"market-feature-lab/internal/gbm"
	"market-feature-lab/internal/observability"
	"market-feature-lab/internal/panel"
	"market-feature-lab/internal/source"
	"market-feature-lab/internal/storage"
	chstore "market-feature-lab/internal/storage/clickhouse"
	"market-feature-lab/internal/storage/csvfile"
	"market-feature-lab/internal/storage/memory"
	"market-feature-lab/internal/storage/migrations"
	"market-feature-lab/internal/storage/postgres"
)

// Sources bundles the configured series sources.
type Sources struct {
	Prices source.PriceSource
	Macro  source.IndicatorSource
	close  func()
}

// Close releases any connection the sources hold.
func (s *Sources) Close() {
	if s.close != nil {
		s.close()
	}
}

// OpenSources builds the sources selected by cfg.Sources.Backend.
func OpenSources(ctx context.Context, cfg *config.Config) (*Sources, error) {
	sc := cfg.Sources
	switch sc.Backend {
	case "http":
		return &Sources{
			Prices: source.NewYahoo(sc.YahooURL, source.WithTimeout(sc.Timeout)),
			Macro:  source.NewFred(sc.FredURL, sc.FredAPIKey, source.WithTimeout(sc.Timeout)),
		}, nil
	case "csv":
		dir := source.NewCSVDir(sc.CSVDir)
		return &Sources{Prices: dir, Macro: dir}, nil
	case "postgres":
		pool, err := postgres.NewPool(ctx, sc.PostgresDSN)
		if err != nil {
			return nil, err
		}
		archive := source.NewArchive(postgres.NewPriceStore(pool), postgres.NewIndicatorStore(pool))
		return &Sources{Prices: archive, Macro: archive, close: pool.Close}, nil
	default:
		return nil, fmt.Errorf("unknown source backend %q", sc.Backend)
	}
}

// OpenPanelStore builds the store selected by cfg.Storage.Backend,
// applying migrations for database backends. The returned func closes it.
func OpenPanelStore(ctx context.Context, cfg *config.Config) (storage.PanelStore, func(), error) {
	sc := cfg.Storage
	switch sc.Backend {
	case "csv":
		return csvfile.NewPanelStore(sc.Path), func() {}, nil
	case "memory":
		return memory.NewPanelStore(), func() {}, nil
	case "postgres":
		pool, err := postgres.NewPool(ctx, sc.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return postgres.NewPanelStore(pool), pool.Close, nil
	case "clickhouse":
		conn, err := migrations.RunClickhouseMigrations(ctx, sc.ClickhouseDSN)
		if err != nil {
			return nil, nil, err
		}
		return chstore.NewPanelStore(conn), func() { _ = conn.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", sc.Backend)
	}
}

// NewBuilder wires the feature builder and its Monte-Carlo projector.
func NewBuilder(cfg *config.Config, logger *slog.Logger) (*features.Builder, error) {
	projector := gbm.NewProjector(gbm.ProjectorOptions{
		Replicates:  cfg.Simulation.Replicates,
		Horizon:     cfg.Simulation.Horizon,
		Step:        cfg.Simulation.Step,
		Workers:     cfg.Simulation.Workers,
		Seed:        cfg.Simulation.Seed,
		OnSimulated: observability.RecordPathsSimulated,
	})
	return features.NewBuilder(features.Options{
		Horizons:   cfg.FeatureHorizons(),
		Convention: features.ReturnConvention(cfg.Features.ReturnConvention),
		TargetDays: cfg.Features.TargetDays,
		Projector:  projector,
		Workers:    cfg.Features.Workers,
		Logger:     logger,

		OnSimulationSkipped: observability.RecordSimulationSkipped,
	})
}

// NewAssembler wires the panel assembler from the calendar and range.
func NewAssembler(cfg *config.Config, logger *slog.Logger) (*panel.Assembler, error) {
	calStart, calEnd, err := cfg.Calendar.Bounds()
	if err != nil {
		return nil, fmt.Errorf("calendar: %w", err)
	}
	rangeStart, rangeEnd, err := cfg.Range.Bounds()
	if err != nil {
		return nil, fmt.Errorf("range: %w", err)
	}
	return panel.NewAssembler(panel.Options{
		CalendarStart: calStart,
		CalendarEnd:   calEnd,
		RangeStart:    rangeStart,
		RangeEnd:      rangeEnd,
		RateOfChange:  cfg.RateOfChangeAliases(),
		Logger:        logger,
	})
}

// NewOptions assembles run options from cfg. Sources and store are
// supplied by the caller so it owns their lifetimes.
func NewOptions(cfg *config.Config, src *Sources, store storage.PanelStore, logger *slog.Logger) (Options, error) {
	builder, err := NewBuilder(cfg, logger)
	if err != nil {
		return Options{}, err
	}
	assembler, err := NewAssembler(cfg, logger)
	if err != nil {
		return Options{}, err
	}
	calStart, calEnd, err := cfg.Calendar.Bounds()
	if err != nil {
		return Options{}, fmt.Errorf("calendar: %w", err)
	}
	_, rangeEnd, err := cfg.Range.Bounds()
	if err != nil {
		return Options{}, fmt.Errorf("range: %w", err)
	}
	// Trading days are at most calendar days, so no row before this date
	// can have every window filled.
	if ready := calStart.AddDate(0, 0, builder.Warmup()); rangeEnd.Before(ready) {
		return Options{}, fmt.Errorf("range ends %s before the %d-day feature warmup from %s completes",
			rangeEnd.Format(domain.DateLayout), builder.Warmup(), calStart.Format(domain.DateLayout))
	}

	indicators := make([]Indicator, 0, len(cfg.Indicators))
	for _, ind := range cfg.Indicators {
		indicators = append(indicators, Indicator{Alias: ind.Alias, Code: ind.Code})
	}

	return Options{
		Instruments:  cfg.Instruments,
		Indicators:   indicators,
		Prices:       src.Prices,
		Macro:        src.Macro,
		FetchStart:   calStart,
		FetchEnd:     calEnd,
		FetchWorkers: cfg.Sources.Workers,
		Builder:      builder,
		Assembler:    assembler,
		Store:        store,
		PanelName:    cfg.Storage.PanelName,
		Logger:       logger,
	}, nil
}

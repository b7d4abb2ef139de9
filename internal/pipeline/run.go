// Package pipeline runs the feature dataset build end to end:
// fetch -> build features -> assemble panel -> persist.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"market-feature-lab/internal/domain"
	"market-feature-lab/internal/features"
	"market-feature-lab/internal/logging"
	"market-feature-lab/internal/observability"
	"market-feature-lab/internal/panel"
	"market-feature-lab/internal/source"
	"market-feature-lab/internal/storage"
)

// Indicator maps a panel column alias to an upstream series code.
type Indicator struct {
	Alias string
	Code  string
}

// Options configures Run.
type Options struct {
	Instruments []string
	Indicators  []Indicator

	Prices source.PriceSource
	Macro  source.IndicatorSource

	// FetchStart and FetchEnd bound the raw history requested from sources.
	FetchStart   time.Time
	FetchEnd     time.Time
	FetchWorkers int // concurrent fetches (default 4)

	Builder   *features.Builder
	Assembler *panel.Assembler

	// Store persists the panel under PanelName. Nil skips persistence.
	Store     storage.PanelStore
	PanelName string

	Logger *slog.Logger
}

// Result summarizes a run.
type Result struct {
	Panel       *domain.Panel
	Instruments []string // built, in configured order
	Indicators  []string // aliases joined, in configured order
	Skipped     []string // identifiers with no retrievable series
	Duration    time.Duration
}

// Run executes the pipeline. Identifiers whose series cannot be retrieved
// are skipped and listed in Result.Skipped; an empty panel, a cancelled
// context or a persistence failure abort the run.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	logger := logging.OrNop(opts.Logger)
	start := time.Now()
	result := &Result{}

	// Phase 1: fetch
	logger.Info("phase 1: fetching series",
		"instruments", len(opts.Instruments), "indicators", len(opts.Indicators))
	var fetched *fetchResult
	err := phase("fetch", func() error {
		var err error
		fetched, err = fetchAll(ctx, opts, logger)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("phase 1 (fetch) failed: %w", err)
	}
	result.Skipped = fetched.skipped
	for _, s := range fetched.series {
		result.Instruments = append(result.Instruments, s.Ticker)
	}
	for _, ind := range fetched.indicators {
		result.Indicators = append(result.Indicators, ind.Alias)
	}
	if len(fetched.series) == 0 {
		return nil, fmt.Errorf("%w: no instrument series available", domain.ErrEmptyPanel)
	}
	logger.Info("  fetched series",
		"instruments", len(fetched.series), "indicators", len(fetched.indicators), "skipped", len(fetched.skipped))

	// Phase 2: features
	logger.Info("phase 2: building features", "instruments", len(fetched.series))
	var frames []*domain.Frame
	err = phase("features", func() error {
		var err error
		frames, err = opts.Builder.BuildAll(ctx, fetched.series)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("phase 2 (features) failed: %w", err)
	}
	for range frames {
		observability.RecordInstrumentBuilt()
	}

	// Phase 3: assemble
	logger.Info("phase 3: assembling panel", "warmup_rows", opts.Builder.Warmup())
	err = phase("assemble", func() error {
		var err error
		result.Panel, err = opts.Assembler.Assemble(frames, fetched.indicators)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("phase 3 (assemble) failed: %w", err)
	}
	observability.RecordPanel(result.Panel.NumRows(), result.Panel.NumColumns())

	// Phase 4: persist
	if opts.Store != nil {
		logger.Info("phase 4: saving panel", "name", opts.PanelName)
		err = phase("persist", func() error {
			return opts.Store.Save(ctx, opts.PanelName, result.Panel)
		})
		if err != nil {
			return nil, fmt.Errorf("phase 4 (persist %s) failed: %w", opts.PanelName, err)
		}
	} else {
		logger.Info("phase 4: skipping persistence (no store)")
	}

	if len(result.Skipped) > 0 {
		logger.Warn("identifiers skipped: no retrievable series", "skipped", result.Skipped)
	}

	result.Duration = time.Since(start)
	observability.DefaultMetrics.LastSuccessfulPipeline.SetToCurrentTime()
	logger.Info("pipeline completed",
		"rows", result.Panel.NumRows(),
		"columns", result.Panel.NumColumns(),
		"duration", result.Duration.Round(time.Millisecond).String(),
	)
	return result, nil
}

func (o *Options) validate() error {
	var errs []error
	if len(o.Instruments) == 0 {
		errs = append(errs, errors.New("no instruments configured"))
	}
	if o.Prices == nil {
		errs = append(errs, errors.New("price source is required"))
	}
	if len(o.Indicators) > 0 && o.Macro == nil {
		errs = append(errs, errors.New("indicator source is required when indicators are configured"))
	}
	if o.Builder == nil {
		errs = append(errs, errors.New("feature builder is required"))
	}
	if o.Assembler == nil {
		errs = append(errs, errors.New("panel assembler is required"))
	}
	if o.Store != nil && o.PanelName == "" {
		errs = append(errs, errors.New("panel name is required with a store"))
	}
	return errors.Join(errs...)
}

// phase runs fn and records its outcome.
func phase(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	status := "success"
	if err != nil {
		status = "error"
	}
	observability.RecordPipelineRun(name, status, time.Since(start).Seconds())
	return err
}

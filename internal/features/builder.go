// Package features derives windowed return, volatility, volume and
// simulated-return columns from raw instrument series.
package features

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"market-feature-lab/internal/domain"
	"market-feature-lab/internal/logging"
)

// Projector estimates expected forward returns from drift/volatility pairs.
// *gbm.Projector implements it.
type Projector interface {
	ExpectedReturns(ctx context.Context, stream string, drift, vol []float64) ([]float64, error)
}

// transform computes one metric over a series for one horizon.
type transform func(s *domain.RawSeries, h Horizon, conv ReturnConvention) []float64

// transforms maps each plain metric to its series function. Simulated
// returns need the projector and are handled by the builder.
var transforms = map[domain.Metric]transform{
	domain.MetricReturn:     returnFeature,
	domain.MetricVolatility: volatilityFeature,
	domain.MetricVolume:     volumeFeature,
}

func returnFeature(s *domain.RawSeries, h Horizon, conv ReturnConvention) []float64 {
	if conv == ReturnPctChange {
		return PctChange(s.Closes(), h.Days)
	}
	return RollingMean(s.SimpleReturn, h.Days)
}

func volatilityFeature(s *domain.RawSeries, h Horizon, _ ReturnConvention) []float64 {
	return RollingPopStd(s.LogReturn, h.Days)
}

func volumeFeature(s *domain.RawSeries, h Horizon, _ ReturnConvention) []float64 {
	if h.VolumeAgg == VolumeSum {
		return RollingSum(s.DollarVolumes(), h.Days)
	}
	return RollingMean(s.DollarVolumes(), h.Days)
}

// Options configures a Builder.
type Options struct {
	Horizons   []Horizon
	Convention ReturnConvention
	TargetDays int
	Projector  Projector // required when any horizon requests GBM
	Workers    int       // instruments built concurrently (default 4)
	Logger     *slog.Logger

	// OnSimulationSkipped, if set, is called when a horizon's projection
	// is skipped for invalid parameters.
	OnSimulationSkipped func()
}

// Builder computes per-instrument feature frames.
type Builder struct {
	horizons   []Horizon
	convention ReturnConvention
	targetDays int
	projector  Projector
	workers    int
	logger     *slog.Logger
	onSkipped  func()
}

// NewBuilder validates opts and creates a Builder.
func NewBuilder(opts Options) (*Builder, error) {
	b := &Builder{
		horizons:   opts.Horizons,
		convention: opts.Convention,
		targetDays: opts.TargetDays,
		projector:  opts.Projector,
		workers:    opts.Workers,
		logger:     logging.OrNop(opts.Logger),
		onSkipped:  opts.OnSimulationSkipped,
	}
	if len(b.horizons) == 0 {
		b.horizons = DefaultHorizons()
	}
	if b.convention == "" {
		b.convention = ReturnRollingMean
	}
	if b.targetDays == 0 {
		b.targetDays = DefaultTargetDays
	}
	if b.workers <= 0 {
		b.workers = 4
	}

	if b.convention != ReturnRollingMean && b.convention != ReturnPctChange {
		return nil, fmt.Errorf("unknown return convention %q", b.convention)
	}
	if b.targetDays < 1 {
		return nil, fmt.Errorf("target days must be >= 1, got %d", b.targetDays)
	}
	seen := make(map[string]struct{}, len(b.horizons))
	for _, h := range b.horizons {
		if err := h.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[h.Name]; dup {
			return nil, fmt.Errorf("duplicate horizon %s", h.Name)
		}
		seen[h.Name] = struct{}{}
		if h.Has(domain.MetricSimulated) && b.projector == nil {
			return nil, fmt.Errorf("horizon %s requests %s but no projector is configured",
				h.Name, domain.MetricSimulated)
		}
	}
	return b, nil
}

// Horizons returns the horizon table in use.
func (b *Builder) Horizons() []Horizon {
	return b.horizons
}

// Warmup returns the number of leading rows the horizon table leaves NaN.
func (b *Builder) Warmup() int {
	return Warmup(b.horizons)
}

// Columns returns the column names Build produces for id, in order:
// the target first, then horizons in table order with metrics in
// domain.MetricOrder.
func (b *Builder) Columns(id string) []string {
	cols := []string{domain.TargetColumn(id)}
	for _, h := range b.horizons {
		for _, m := range domain.MetricOrder {
			if h.Has(m) {
				cols = append(cols, domain.ColumnKey{ID: id, Horizon: h.Name, Metric: m}.String())
			}
		}
	}
	return cols
}

// Build computes the feature frame of one instrument on its own dates.
// Warmup and forward-horizon rows are left NaN.
func (b *Builder) Build(ctx context.Context, s *domain.RawSeries) (*domain.Frame, error) {
	frame := domain.NewFrame(s.Ticker, s.Dates())

	if err := frame.Add(domain.TargetColumn(s.Ticker), ForwardReturn(s.Closes(), b.targetDays)); err != nil {
		return nil, err
	}

	for _, h := range b.horizons {
		for _, m := range domain.MetricOrder {
			if !h.Has(m) {
				continue
			}
			name := domain.ColumnKey{ID: s.Ticker, Horizon: h.Name, Metric: m}.String()

			var values []float64
			if m == domain.MetricSimulated {
				v, err := b.simulated(ctx, s, h)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", name, err)
				}
				values = v
			} else {
				values = transforms[m](s, h, b.convention)
			}

			if err := frame.Add(name, values); err != nil {
				return nil, err
			}
		}
	}
	return frame, nil
}

// simulated projects expected returns using the horizon's rolling mean
// daily return as drift and rolling log-return std as volatility.
func (b *Builder) simulated(ctx context.Context, s *domain.RawSeries, h Horizon) ([]float64, error) {
	drift := RollingMean(s.SimpleReturn, h.Days)
	vol := RollingPopStd(s.LogReturn, h.Days)

	out, err := b.projector.ExpectedReturns(ctx, s.Ticker+"/"+h.Name, drift, vol)
	if errors.Is(err, domain.ErrInvalidParameters) {
		// The cell values are already NaN; the row drop removes them.
		b.logger.Warn("simulation skipped", "ticker", s.Ticker, "horizon", h.Name, "error", err)
		if b.onSkipped != nil {
			b.onSkipped()
		}
		return out, nil
	}
	return out, err
}

// BuildAll builds frames for every series concurrently, preserving input
// order. The first error cancels the remaining work.
func (b *Builder) BuildAll(ctx context.Context, series []*domain.RawSeries) ([]*domain.Frame, error) {
	frames := make([]*domain.Frame, len(series))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i, s := range series {
		g.Go(func() error {
			frame, err := b.Build(ctx, s)
			if err != nil {
				return fmt.Errorf("build features for %s: %w", s.Ticker, err)
			}
			frames[i] = frame
			b.logger.Debug("features built", "ticker", s.Ticker, "rows", len(frame.Dates), "columns", len(frame.Columns))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return frames, nil
}

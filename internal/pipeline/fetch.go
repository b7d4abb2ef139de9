package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"market-feature-lab/internal/domain"
	"market-feature-lab/internal/observability"
)

const defaultFetchWorkers = 4

// fetchResult holds the retrieved series in configured order.
type fetchResult struct {
	series     []*domain.RawSeries
	indicators []*domain.IndicatorSeries
	skipped    []string
}

// skippable reports whether err isolates to one identifier.
func skippable(err error) bool {
	return errors.Is(err, domain.ErrDataUnavailable) || errors.Is(err, domain.ErrInvalidSeries)
}

// fetchAll retrieves every instrument and indicator with bounded
// concurrency. Per-identifier failures are collected as skipped; any
// other error cancels the fetch.
func fetchAll(ctx context.Context, opts Options, logger *slog.Logger) (*fetchResult, error) {
	workers := opts.FetchWorkers
	if workers <= 0 {
		workers = defaultFetchWorkers
	}

	series := make([]*domain.RawSeries, len(opts.Instruments))
	indicators := make([]*domain.IndicatorSeries, len(opts.Indicators))
	instErrs := make([]error, len(opts.Instruments))
	indErrs := make([]error, len(opts.Indicators))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, ticker := range opts.Instruments {
		g.Go(func() error {
			s, err := fetchInstrument(gctx, opts, ticker)
			if err != nil {
				if !skippable(err) {
					return fmt.Errorf("fetch %s: %w", ticker, err)
				}
				logger.Warn("instrument skipped", "ticker", ticker, "error", err)
				instErrs[i] = err
				return nil
			}
			series[i] = s
			return nil
		})
	}

	for i, ind := range opts.Indicators {
		g.Go(func() error {
			s, err := fetchIndicator(gctx, opts, ind)
			if err != nil {
				if !skippable(err) {
					return fmt.Errorf("fetch %s (%s): %w", ind.Alias, ind.Code, err)
				}
				logger.Warn("indicator skipped", "alias", ind.Alias, "code", ind.Code, "error", err)
				indErrs[i] = err
				return nil
			}
			indicators[i] = s
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	// Sources may report a cancelled request as unavailable.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &fetchResult{}
	for i, s := range series {
		if instErrs[i] != nil {
			out.skipped = append(out.skipped, opts.Instruments[i])
			continue
		}
		out.series = append(out.series, s)
	}
	for i, s := range indicators {
		if indErrs[i] != nil {
			out.skipped = append(out.skipped, opts.Indicators[i].Code)
			continue
		}
		out.indicators = append(out.indicators, s)
	}
	return out, nil
}

func fetchInstrument(ctx context.Context, opts Options, ticker string) (*domain.RawSeries, error) {
	start := time.Now()
	points, err := opts.Prices.FetchPrices(ctx, ticker, opts.FetchStart, opts.FetchEnd)
	observability.RecordFetch("price", len(points), time.Since(start).Seconds(), err)
	if err != nil {
		return nil, err
	}
	return domain.NewRawSeries(ticker, points)
}

func fetchIndicator(ctx context.Context, opts Options, ind Indicator) (*domain.IndicatorSeries, error) {
	start := time.Now()
	points, err := opts.Macro.FetchIndicator(ctx, ind.Code, opts.FetchStart, opts.FetchEnd)
	observability.RecordFetch("indicator", len(points), time.Since(start).Seconds(), err)
	if err != nil {
		return nil, err
	}
	return domain.NewIndicatorSeries(ind.Code, ind.Alias, points)
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"market-feature-lab/internal/domain"
	"market-feature-lab/internal/logging"
	"market-feature-lab/internal/observability"
	"market-feature-lab/internal/source"
	"market-feature-lab/internal/storage"
)

// IngestOptions configures Ingest.
type IngestOptions struct {
	Instruments []string
	Indicators  []Indicator

	Prices source.PriceSource
	Macro  source.IndicatorSource

	PriceStore     storage.PriceStore
	IndicatorStore storage.IndicatorStore

	// Start is the first date archived for identifiers with no history.
	// End is the last date requested.
	Start time.Time
	End   time.Time

	Workers int
	Logger  *slog.Logger
}

// IngestResult summarizes an ingest run.
type IngestResult struct {
	Stored   map[string]int // points archived per identifier
	UpToDate []string       // identifiers already archived through End
	Skipped  []string       // identifiers with nothing retrievable
}

// Ingest archives upstream series incrementally: each identifier is
// fetched from the day after its latest archived date. An archived
// identifier with nothing new upstream counts as up to date.
func Ingest(ctx context.Context, opts IngestOptions) (*IngestResult, error) {
	if opts.PriceStore == nil || opts.IndicatorStore == nil {
		return nil, errors.New("price and indicator stores are required")
	}
	if opts.Prices == nil || (len(opts.Indicators) > 0 && opts.Macro == nil) {
		return nil, errors.New("sources are required")
	}
	logger := logging.OrNop(opts.Logger)
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultFetchWorkers
	}
	start := time.Now()

	type outcome struct {
		id       string
		stored   int
		upToDate bool
		skipped  bool
	}
	outcomes := make([]outcome, len(opts.Instruments)+len(opts.Indicators))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, ticker := range opts.Instruments {
		g.Go(func() error {
			from, err := resumeFrom(opts.PriceStore.LatestDate(gctx, ticker))
			archived := !from.IsZero()
			if err != nil {
				return fmt.Errorf("latest date %s: %w", ticker, err)
			}
			from = later(from, opts.Start)
			o := outcome{id: ticker}
			if from.After(opts.End) {
				o.upToDate = true
				outcomes[i] = o
				return nil
			}

			fetchStart := time.Now()
			points, err := opts.Prices.FetchPrices(gctx, ticker, from, opts.End)
			observability.RecordFetch("price", len(points), time.Since(fetchStart).Seconds(), err)
			if err != nil {
				if !skippable(err) {
					return fmt.Errorf("fetch %s: %w", ticker, err)
				}
				if archived {
					logger.Info("no new prices", "ticker", ticker, "error", err)
					o.upToDate = true
				} else {
					logger.Warn("instrument skipped", "ticker", ticker, "error", err)
					o.skipped = true
				}
				outcomes[i] = o
				return nil
			}
			if err := opts.PriceStore.InsertBulk(gctx, ticker, points); err != nil {
				return fmt.Errorf("archive %s: %w", ticker, err)
			}
			observability.RecordStored("price", len(points))
			o.stored = len(points)
			outcomes[i] = o
			logger.Info("archived prices", "ticker", ticker, "from", from.Format(domain.DateLayout), "points", len(points))
			return nil
		})
	}

	offset := len(opts.Instruments)
	for j, ind := range opts.Indicators {
		g.Go(func() error {
			from, err := resumeFrom(opts.IndicatorStore.LatestDate(gctx, ind.Code))
			archived := !from.IsZero()
			if err != nil {
				return fmt.Errorf("latest date %s: %w", ind.Code, err)
			}
			from = later(from, opts.Start)
			o := outcome{id: ind.Code}
			if from.After(opts.End) {
				o.upToDate = true
				outcomes[offset+j] = o
				return nil
			}

			fetchStart := time.Now()
			points, err := opts.Macro.FetchIndicator(gctx, ind.Code, from, opts.End)
			observability.RecordFetch("indicator", len(points), time.Since(fetchStart).Seconds(), err)
			if err != nil {
				if !skippable(err) {
					return fmt.Errorf("fetch %s: %w", ind.Code, err)
				}
				if archived {
					logger.Info("no new observations", "code", ind.Code, "error", err)
					o.upToDate = true
				} else {
					logger.Warn("indicator skipped", "code", ind.Code, "error", err)
					o.skipped = true
				}
				outcomes[offset+j] = o
				return nil
			}
			if err := opts.IndicatorStore.InsertBulk(gctx, ind.Code, points); err != nil {
				return fmt.Errorf("archive %s: %w", ind.Code, err)
			}
			observability.RecordStored("indicator", len(points))
			o.stored = len(points)
			outcomes[offset+j] = o
			logger.Info("archived indicator", "code", ind.Code, "from", from.Format(domain.DateLayout), "points", len(points))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		observability.RecordPipelineRun("ingest", "error", time.Since(start).Seconds())
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		observability.RecordPipelineRun("ingest", "error", time.Since(start).Seconds())
		return nil, err
	}

	result := &IngestResult{Stored: make(map[string]int)}
	for _, o := range outcomes {
		switch {
		case o.skipped:
			result.Skipped = append(result.Skipped, o.id)
		case o.upToDate:
			result.UpToDate = append(result.UpToDate, o.id)
		default:
			result.Stored[o.id] = o.stored
		}
	}

	observability.RecordPipelineRun("ingest", "success", time.Since(start).Seconds())
	observability.DefaultMetrics.LastSuccessfulIngest.SetToCurrentTime()
	if len(result.Skipped) > 0 {
		logger.Warn("identifiers skipped: no retrievable series", "skipped", result.Skipped)
	}
	return result, nil
}

// resumeFrom turns a LatestDate result into the first date to fetch.
// The zero time means no history.
func resumeFrom(latest time.Time, err error) (time.Time, error) {
	if errors.Is(err, storage.ErrNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return domain.Day(latest).AddDate(0, 0, 1), nil
}

func later(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

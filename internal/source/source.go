// Package source fetches raw instrument prices and macro indicator series.
//
// Every implementation makes a single attempt per identifier. Failures are
// wrapped in domain.ErrDataUnavailable so callers can skip the identifier
// and continue.
package source

import (
	"context"
	"fmt"
	"time"

	"market-feature-lab/internal/domain"
)

// PriceSource fetches daily adjusted close and volume for a ticker.
type PriceSource interface {
	FetchPrices(ctx context.Context, ticker string, start, end time.Time) ([]domain.PricePoint, error)
}

// IndicatorSource fetches a single-value macro series by upstream code.
type IndicatorSource interface {
	FetchIndicator(ctx context.Context, code string, start, end time.Time) ([]domain.IndicatorPoint, error)
}

// unavailable wraps err as ErrDataUnavailable for id.
func unavailable(id string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrDataUnavailable, id, err)
}

// inRange reports whether d falls within [start, end] by calendar day.
// A zero bound is open.
func inRange(d, start, end time.Time) bool {
	d = domain.Day(d)
	if !start.IsZero() && d.Before(domain.Day(start)) {
		return false
	}
	if !end.IsZero() && d.After(domain.Day(end)) {
		return false
	}
	return true
}

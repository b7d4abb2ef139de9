package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"market-feature-lab/internal/domain"
	"market-feature-lab/internal/storage"
)

// Archive serves series previously archived by cmd/ingest.
type Archive struct {
	prices     storage.PriceStore
	indicators storage.IndicatorStore
}

var (
	_ PriceSource     = (*Archive)(nil)
	_ IndicatorSource = (*Archive)(nil)
)

// NewArchive creates a source reading from the given stores.
func NewArchive(prices storage.PriceStore, indicators storage.IndicatorStore) *Archive {
	return &Archive{prices: prices, indicators: indicators}
}

// FetchPrices reads archived bars of ticker. A missing or empty archive
// is ErrDataUnavailable; store failures are returned as they are.
func (a *Archive) FetchPrices(ctx context.Context, ticker string, start, end time.Time) ([]domain.PricePoint, error) {
	points, err := a.prices.GetByRange(ctx, ticker, start, end)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, unavailable(ticker, err)
	}
	if err != nil {
		return nil, fmt.Errorf("read archived prices of %s: %w", ticker, err)
	}
	if len(points) == 0 {
		return nil, unavailable(ticker, errors.New("nothing archived in range"))
	}
	return points, nil
}

// FetchIndicator reads archived observations of code.
func (a *Archive) FetchIndicator(ctx context.Context, code string, start, end time.Time) ([]domain.IndicatorPoint, error) {
	points, err := a.indicators.GetByRange(ctx, code, start, end)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, unavailable(code, err)
	}
	if err != nil {
		return nil, fmt.Errorf("read archived observations of %s: %w", code, err)
	}
	if len(points) == 0 {
		return nil, unavailable(code, errors.New("nothing archived in range"))
	}
	return points, nil
}

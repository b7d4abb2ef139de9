package source

import (
	"context"
	"errors"
	"sync"
	"time"

	"market-feature-lab/internal/domain"
)

// Static serves preloaded series from memory.
type Static struct {
	mu         sync.RWMutex
	prices     map[string][]domain.PricePoint
	indicators map[string][]domain.IndicatorPoint
}

var (
	_ PriceSource     = (*Static)(nil)
	_ IndicatorSource = (*Static)(nil)
)

// NewStatic creates an empty static source.
func NewStatic() *Static {
	return &Static{
		prices:     make(map[string][]domain.PricePoint),
		indicators: make(map[string][]domain.IndicatorPoint),
	}
}

// SetPrices registers the bars of ticker.
func (s *Static) SetPrices(ticker string, points []domain.PricePoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[ticker] = points
}

// SetIndicator registers the observations of code.
func (s *Static) SetIndicator(code string, points []domain.IndicatorPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indicators[code] = points
}

// FetchPrices returns the registered bars of ticker within [start, end].
func (s *Static) FetchPrices(ctx context.Context, ticker string, start, end time.Time) ([]domain.PricePoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	points, ok := s.prices[ticker]
	s.mu.RUnlock()
	if !ok {
		return nil, unavailable(ticker, errors.New("unknown ticker"))
	}

	var out []domain.PricePoint
	for _, p := range points {
		if inRange(p.Date, start, end) {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil, unavailable(ticker, errors.New("no bars in range"))
	}
	return out, nil
}

// FetchIndicator returns the registered observations of code within [start, end].
func (s *Static) FetchIndicator(ctx context.Context, code string, start, end time.Time) ([]domain.IndicatorPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	points, ok := s.indicators[code]
	s.mu.RUnlock()
	if !ok {
		return nil, unavailable(code, errors.New("unknown series"))
	}

	var out []domain.IndicatorPoint
	for _, p := range points {
		if inRange(p.Date, start, end) {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil, unavailable(code, errors.New("no observations in range"))
	}
	return out, nil
}

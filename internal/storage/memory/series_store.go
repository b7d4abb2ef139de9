package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"market-feature-lab/internal/domain"
	"market-feature-lab/internal/storage"
)

// seriesKey identifies one archived observation.
type seriesKey struct {
	id   string
	date time.Time
}

// PriceStore is an in-memory implementation of storage.PriceStore.
type PriceStore struct {
	mu   sync.RWMutex
	data map[seriesKey]domain.PricePoint
}

// NewPriceStore creates a new in-memory price store.
func NewPriceStore() *PriceStore {
	return &PriceStore{data: make(map[seriesKey]domain.PricePoint)}
}

var _ storage.PriceStore = (*PriceStore)(nil)

// InsertBulk adds bars for ticker. Fails entire batch on duplicate.
func (s *PriceStore) InsertBulk(_ context.Context, ticker string, points []domain.PricePoint) error {
	if ticker == "" {
		return storage.ErrInvalidInput
	}
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make(map[seriesKey]struct{}, len(points))
	for _, p := range points {
		k := seriesKey{ticker, domain.Day(p.Date)}
		if _, exists := s.data[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batch[k]; exists {
			return storage.ErrDuplicateKey
		}
		batch[k] = struct{}{}
	}

	for _, p := range points {
		p.Date = domain.Day(p.Date)
		s.data[seriesKey{ticker, p.Date}] = p
	}
	return nil
}

// GetByRange retrieves bars for ticker within [start, end], ordered by date ASC.
func (s *PriceStore) GetByRange(_ context.Context, ticker string, start, end time.Time) ([]domain.PricePoint, error) {
	start, end = domain.Day(start), domain.Day(end)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.PricePoint
	for k, p := range s.data {
		if k.id == ticker && !k.date.Before(start) && !k.date.After(end) {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

// LatestDate returns the most recent archived date for ticker.
func (s *PriceStore) LatestDate(_ context.Context, ticker string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return latest(s.data, ticker)
}

// IndicatorStore is an in-memory implementation of storage.IndicatorStore.
type IndicatorStore struct {
	mu   sync.RWMutex
	data map[seriesKey]domain.IndicatorPoint
}

// NewIndicatorStore creates a new in-memory indicator store.
func NewIndicatorStore() *IndicatorStore {
	return &IndicatorStore{data: make(map[seriesKey]domain.IndicatorPoint)}
}

var _ storage.IndicatorStore = (*IndicatorStore)(nil)

// InsertBulk adds observations for code. Fails entire batch on duplicate.
func (s *IndicatorStore) InsertBulk(_ context.Context, code string, points []domain.IndicatorPoint) error {
	if code == "" {
		return storage.ErrInvalidInput
	}
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make(map[seriesKey]struct{}, len(points))
	for _, p := range points {
		k := seriesKey{code, domain.Day(p.Date)}
		if _, exists := s.data[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batch[k]; exists {
			return storage.ErrDuplicateKey
		}
		batch[k] = struct{}{}
	}

	for _, p := range points {
		p.Date = domain.Day(p.Date)
		s.data[seriesKey{code, p.Date}] = p
	}
	return nil
}

// GetByRange retrieves observations for code within [start, end], ordered by date ASC.
func (s *IndicatorStore) GetByRange(_ context.Context, code string, start, end time.Time) ([]domain.IndicatorPoint, error) {
	start, end = domain.Day(start), domain.Day(end)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.IndicatorPoint
	for k, p := range s.data {
		if k.id == code && !k.date.Before(start) && !k.date.After(end) {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

// LatestDate returns the most recent archived date for code.
func (s *IndicatorStore) LatestDate(_ context.Context, code string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return latest(s.data, code)
}

func latest[V any](data map[seriesKey]V, id string) (time.Time, error) {
	var last time.Time
	found := false
	for k := range data {
		if k.id == id && (!found || k.date.After(last)) {
			last = k.date
			found = true
		}
	}
	if !found {
		return time.Time{}, storage.ErrNotFound
	}
	return last, nil
}

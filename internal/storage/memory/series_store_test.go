package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"market-feature-lab/internal/domain"
	"market-feature-lab/internal/storage"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPriceStore_InsertBulkAndGetByRange(t *testing.T) {
	store := NewPriceStore()
	ctx := context.Background()

	points := []domain.PricePoint{
		{Date: date(2021, 1, 6), AdjClose: 102, Volume: 10},
		{Date: date(2021, 1, 4), AdjClose: 100, Volume: 10},
		{Date: date(2021, 1, 5), AdjClose: 101, Volume: 10},
	}
	if err := store.InsertBulk(ctx, "SPY", points); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByRange(ctx, "SPY", date(2021, 1, 5), date(2021, 1, 6))
	if err != nil {
		t.Fatalf("GetByRange failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 points, got %d", len(got))
	}
	if got[0].AdjClose != 101 || got[1].AdjClose != 102 {
		t.Errorf("Expected ordered closes [101 102], got [%v %v]", got[0].AdjClose, got[1].AdjClose)
	}

	other, err := store.GetByRange(ctx, "QQQ", date(2021, 1, 1), date(2021, 12, 31))
	if err != nil {
		t.Fatalf("GetByRange failed: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("Expected no points for QQQ, got %d", len(other))
	}
}

func TestPriceStore_DuplicateKey(t *testing.T) {
	store := NewPriceStore()
	ctx := context.Background()

	points := []domain.PricePoint{{Date: date(2021, 1, 4), AdjClose: 100}}
	if err := store.InsertBulk(ctx, "SPY", points); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.InsertBulk(ctx, "SPY", points)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	// Same date under another ticker is fine.
	if err := store.InsertBulk(ctx, "QQQ", points); err != nil {
		t.Errorf("Insert for other ticker failed: %v", err)
	}
}

func TestPriceStore_IntraBatchDuplicate(t *testing.T) {
	store := NewPriceStore()
	ctx := context.Background()

	points := []domain.PricePoint{
		{Date: date(2021, 1, 4), AdjClose: 100},
		{Date: date(2021, 1, 4).Add(15 * time.Hour), AdjClose: 101},
	}
	err := store.InsertBulk(ctx, "SPY", points)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	got, _ := store.GetByRange(ctx, "SPY", date(2021, 1, 1), date(2021, 1, 31))
	if len(got) != 0 {
		t.Errorf("Expected failed batch to store nothing, got %d points", len(got))
	}
}

func TestPriceStore_LatestDate(t *testing.T) {
	store := NewPriceStore()
	ctx := context.Background()

	if _, err := store.LatestDate(ctx, "SPY"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	_ = store.InsertBulk(ctx, "SPY", []domain.PricePoint{
		{Date: date(2021, 1, 4)}, {Date: date(2021, 3, 1)}, {Date: date(2021, 2, 1)},
	})

	last, err := store.LatestDate(ctx, "SPY")
	if err != nil {
		t.Fatalf("LatestDate failed: %v", err)
	}
	if !last.Equal(date(2021, 3, 1)) {
		t.Errorf("Expected 2021-03-01, got %v", last)
	}
}

func TestIndicatorStore_InsertBulkAndGetByRange(t *testing.T) {
	store := NewIndicatorStore()
	ctx := context.Background()

	points := []domain.IndicatorPoint{
		{Date: date(2021, 2, 1), Value: 101.5},
		{Date: date(2021, 1, 1), Value: 100.0},
	}
	if err := store.InsertBulk(ctx, "INDPRO", points); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByRange(ctx, "INDPRO", date(2020, 1, 1), date(2021, 12, 31))
	if err != nil {
		t.Fatalf("GetByRange failed: %v", err)
	}
	if len(got) != 2 || got[0].Value != 100.0 {
		t.Errorf("Expected 2 ordered observations, got %+v", got)
	}

	if err := store.InsertBulk(ctx, "INDPRO", points[:1]); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	last, err := store.LatestDate(ctx, "INDPRO")
	if err != nil || !last.Equal(date(2021, 2, 1)) {
		t.Errorf("Expected latest 2021-02-01, got %v (%v)", last, err)
	}
}

func TestIndicatorStore_InvalidInput(t *testing.T) {
	store := NewIndicatorStore()
	err := store.InsertBulk(context.Background(), "", []domain.IndicatorPoint{{Date: date(2021, 1, 1)}})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

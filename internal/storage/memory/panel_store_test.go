package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"market-feature-lab/internal/domain"
	"market-feature-lab/internal/storage"
)

func testPanel() *domain.Panel {
	p := domain.NewPanel(
		[]time.Time{date(2021, 1, 1), date(2021, 1, 2)},
		[]string{"SPY_TARGET", "VIX"},
	)
	p.Values[0] = []float64{0.01, -0.02}
	p.Values[1] = []float64{20, 21}
	return p
}

func TestPanelStore_SaveAndLoad(t *testing.T) {
	store := NewPanelStore()
	ctx := context.Background()

	p := testPanel()
	if err := store.Save(ctx, "market_data", p); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Mutating the saved panel must not leak into the store.
	p.Values[0][0] = 99

	got, err := store.Load(ctx, "market_data")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Values[0][0] != 0.01 {
		t.Errorf("Expected stored copy, got %v", got.Values[0][0])
	}
	if got.NumRows() != 2 || got.NumColumns() != 2 {
		t.Errorf("Expected 2x2 panel, got %dx%d", got.NumRows(), got.NumColumns())
	}
}

func TestPanelStore_SaveReplaces(t *testing.T) {
	store := NewPanelStore()
	ctx := context.Background()

	_ = store.Save(ctx, "p", testPanel())
	replacement := testPanel()
	replacement.Values[1] = []float64{30, 31}
	if err := store.Save(ctx, "p", replacement); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, _ := store.Load(ctx, "p")
	if got.Column("VIX")[0] != 30 {
		t.Errorf("Expected replaced panel, got VIX %v", got.Column("VIX"))
	}
	if len(store.Names()) != 1 {
		t.Errorf("Expected 1 panel, got %d", len(store.Names()))
	}
}

func TestPanelStore_LoadMissing(t *testing.T) {
	_, err := NewPanelStore().Load(context.Background(), "absent")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestPanelStore_RejectsInvalidPanel(t *testing.T) {
	p := testPanel()
	p.Values[1] = p.Values[1][:1]

	err := NewPanelStore().Save(context.Background(), "bad", p)
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

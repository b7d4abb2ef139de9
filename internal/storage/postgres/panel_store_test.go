package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-feature-lab/internal/domain"
	"market-feature-lab/internal/storage"
)

func samplePanel() *domain.Panel {
	p := domain.NewPanel(
		[]time.Time{day(2020, 12, 29), day(2020, 12, 30), day(2020, 12, 31)},
		[]string{"SPY_TARGET", "SPY_1W_GBM", "VIX"},
	)
	p.Values[0] = []float64{0.012, -0.004, 0.3}
	p.Values[1] = []float64{0.0001234, 0.0001111, 0}
	p.Values[2] = []float64{21.7, 22.77, 22.75}
	return p
}

func TestPanelStore_SaveAndLoad(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPanelStore(pool)

	p := samplePanel()
	require.NoError(t, store.Save(ctx, "market_data", p))

	got, err := store.Load(ctx, "market_data")
	require.NoError(t, err)
	assert.Equal(t, p.Columns, got.Columns)
	assert.Equal(t, p.Dates, got.Dates)
	assert.Equal(t, p.Values, got.Values)
}

func TestPanelStore_SaveReplaces(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPanelStore(pool)

	require.NoError(t, store.Save(ctx, "market_data", samplePanel()))

	smaller := domain.NewPanel([]time.Time{day(2021, 1, 4)}, []string{"QQQ_TARGET"})
	smaller.Values[0] = []float64{0.5}
	require.NoError(t, store.Save(ctx, "market_data", smaller))

	got, err := store.Load(ctx, "market_data")
	require.NoError(t, err)
	assert.Equal(t, []string{"QQQ_TARGET"}, got.Columns)
	assert.Equal(t, 1, got.NumRows())
}

func TestPanelStore_LoadNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := NewPanelStore(pool).Load(context.Background(), "absent")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

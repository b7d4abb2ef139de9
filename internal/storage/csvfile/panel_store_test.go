package csvfile

import (
	"context"
	"math"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-feature-lab/internal/domain"
	"market-feature-lab/internal/storage"
)

func TestPanelStore_RoundTripIsLossless(t *testing.T) {
	store := NewPanelStore(t.TempDir())
	ctx := context.Background()

	dates := []time.Time{
		time.Date(2020, 12, 30, 0, 0, 0, 0, time.UTC),
		time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC),
	}
	p := domain.NewPanel(dates, []string{"SPY_TARGET", "SPY_1M_GBM", "VIX"})
	p.Values[0] = []float64{0.1 + 0.2, -1e-17}
	p.Values[1] = []float64{math.Nextafter(1, 2) - 1, 123456789.123456789}
	p.Values[2] = []float64{22.75, math.MaxFloat64}

	require.NoError(t, store.Save(ctx, "market_data", p))

	got, err := store.Load(ctx, "market_data")
	require.NoError(t, err)

	assert.Equal(t, p.Columns, got.Columns)
	assert.Equal(t, p.Dates, got.Dates)
	for c := range p.Columns {
		assert.Equal(t, p.Values[c], got.Values[c], p.Columns[c])
	}
}

func TestPanelStore_FileLayout(t *testing.T) {
	store := NewPanelStore(t.TempDir())

	p := domain.NewPanel([]time.Time{time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)}, []string{"A", "B"})
	p.Values[0] = []float64{1.5}
	p.Values[1] = []float64{-2}
	require.NoError(t, store.Save(context.Background(), "small", p))

	raw, err := os.ReadFile(store.Path("small"))
	require.NoError(t, err)
	assert.Equal(t, "date,A,B\n2021-01-04,1.5,-2\n", string(raw))
}

func TestPanelStore_SaveOverwrites(t *testing.T) {
	store := NewPanelStore(t.TempDir())
	ctx := context.Background()

	d := []time.Time{time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)}
	first := domain.NewPanel(d, []string{"A"})
	first.Values[0] = []float64{1}
	second := domain.NewPanel(d, []string{"A"})
	second.Values[0] = []float64{2}

	require.NoError(t, store.Save(ctx, "p", first))
	require.NoError(t, store.Save(ctx, "p", second))

	got, err := store.Load(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, []float64{2}, got.Column("A"))

	entries, err := os.ReadDir(store.dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestPanelStore_LoadMissing(t *testing.T) {
	_, err := NewPanelStore(t.TempDir()).Load(context.Background(), "absent")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPanelStore_LoadRejectsBadHeader(t *testing.T) {
	store := NewPanelStore(t.TempDir())
	require.NoError(t, os.WriteFile(store.Path("bad"), []byte("day,A\n2021-01-01,1\n"), 0o600))

	_, err := store.Load(context.Background(), "bad")
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestPanelStore_SaveRejectsInvalidPanel(t *testing.T) {
	store := NewPanelStore(t.TempDir())
	p := &domain.Panel{Columns: []string{"A"}}

	err := store.Save(context.Background(), "bad", p)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
	assert.True(t, strings.Contains(err.Error(), "invalid input"))
}

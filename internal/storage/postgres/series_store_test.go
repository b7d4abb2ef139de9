package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-feature-lab/internal/domain"
	"market-feature-lab/internal/storage"
)

func TestPriceStore_InsertAndGetByRange(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPriceStore(pool)

	points := []domain.PricePoint{
		{Date: day(2021, 1, 4), AdjClose: 370.12, Volume: 1.1e8},
		{Date: day(2021, 1, 5), AdjClose: 372.79, Volume: 6.6e7},
		{Date: day(2021, 1, 6), AdjClose: 374.89, Volume: 1.07e8},
	}
	require.NoError(t, store.InsertBulk(ctx, "SPY", points))

	got, err := store.GetByRange(ctx, "SPY", day(2021, 1, 5), day(2021, 1, 31))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, day(2021, 1, 5), got[0].Date)
	assert.InDelta(t, 372.79, got[0].AdjClose, 1e-9)
	assert.InDelta(t, 1.07e8, got[1].Volume, 1e-3)

	last, err := store.LatestDate(ctx, "SPY")
	require.NoError(t, err)
	assert.Equal(t, day(2021, 1, 6), last)
}

func TestPriceStore_DuplicateRejectsWholeBatch(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPriceStore(pool)

	require.NoError(t, store.InsertBulk(ctx, "QQQ", []domain.PricePoint{{Date: day(2021, 1, 4), AdjClose: 1, Volume: 1}}))

	err := store.InsertBulk(ctx, "QQQ", []domain.PricePoint{
		{Date: day(2021, 1, 5), AdjClose: 2, Volume: 1},
		{Date: day(2021, 1, 4), AdjClose: 3, Volume: 1},
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err := store.GetByRange(ctx, "QQQ", day(2021, 1, 1), day(2021, 1, 31))
	require.NoError(t, err)
	assert.Len(t, got, 1, "failed batch must not be partially stored")
}

func TestPriceStore_LatestDateNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := NewPriceStore(pool).LatestDate(context.Background(), "NONE")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIndicatorStore_InsertAndGetByRange(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewIndicatorStore(pool)

	points := []domain.IndicatorPoint{
		{Date: day(2020, 12, 1), Value: 102.1},
		{Date: day(2021, 1, 1), Value: 103.4},
	}
	require.NoError(t, store.InsertBulk(ctx, "INDPRO", points))

	got, err := store.GetByRange(ctx, "INDPRO", day(2020, 1, 1), day(2021, 12, 31))
	require.NoError(t, err)
	assert.Equal(t, points, got)

	err = store.InsertBulk(ctx, "INDPRO", points[1:])
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

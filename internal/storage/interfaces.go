package storage

import (
	"context"
	"time"

	"market-feature-lab/internal/domain"
)

// PriceStore archives raw daily instrument bars.
type PriceStore interface {
	// InsertBulk adds bars for ticker atomically.
	// Returns ErrDuplicateKey if any (ticker, date) already exists or repeats in the batch.
	InsertBulk(ctx context.Context, ticker string, points []domain.PricePoint) error

	// GetByRange retrieves bars for ticker within [start, end] (inclusive), ordered by date ASC.
	GetByRange(ctx context.Context, ticker string, start, end time.Time) ([]domain.PricePoint, error)

	// LatestDate returns the most recent archived date for ticker.
	// Returns ErrNotFound if nothing is archived.
	LatestDate(ctx context.Context, ticker string) (time.Time, error)
}

// IndicatorStore archives raw macro indicator observations.
type IndicatorStore interface {
	// InsertBulk adds observations for code atomically.
	// Returns ErrDuplicateKey if any (code, date) already exists or repeats in the batch.
	InsertBulk(ctx context.Context, code string, points []domain.IndicatorPoint) error

	// GetByRange retrieves observations for code within [start, end] (inclusive), ordered by date ASC.
	GetByRange(ctx context.Context, code string, start, end time.Time) ([]domain.IndicatorPoint, error)

	// LatestDate returns the most recent archived date for code.
	// Returns ErrNotFound if nothing is archived.
	LatestDate(ctx context.Context, code string) (time.Time, error)
}

// PanelStore persists assembled feature panels by name.
type PanelStore interface {
	// Save persists p under name. Replacing backends overwrite an existing
	// panel atomically; append-only backends return ErrDuplicateKey.
	Save(ctx context.Context, name string, p *domain.Panel) error

	// Load retrieves the panel stored under name. Returns ErrNotFound if absent.
	Load(ctx context.Context, name string) (*domain.Panel, error)
}

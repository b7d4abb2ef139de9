package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"market-feature-lab/internal/domain"
	"market-feature-lab/internal/storage"
)

// PriceStore implements storage.PriceStore using PostgreSQL.
type PriceStore struct {
	pool *Pool
}

// NewPriceStore creates a new PriceStore.
func NewPriceStore(pool *Pool) *PriceStore {
	return &PriceStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PriceStore = (*PriceStore)(nil)

// InsertBulk copies bars for ticker in one transaction. Fails entire batch on any duplicate.
func (s *PriceStore) InsertBulk(ctx context.Context, ticker string, points []domain.PricePoint) error {
	if ticker == "" {
		return storage.ErrInvalidInput
	}
	if len(points) == 0 {
		return nil
	}

	dates := make([]time.Time, len(points))
	for i, p := range points {
		dates[i] = p.Date
	}
	if err := storage.CheckBatchDates(dates); err != nil {
		return err
	}

	rows := make([][]any, len(points))
	for i, p := range points {
		rows[i] = []any{ticker, domain.Day(p.Date), p.AdjClose, p.Volume}
	}

	return copyInTx(ctx, s.pool, "price_points", []string{"ticker", "date", "adj_close", "volume"}, rows)
}

// GetByRange retrieves bars for ticker within [start, end], ordered by date ASC.
func (s *PriceStore) GetByRange(ctx context.Context, ticker string, start, end time.Time) ([]domain.PricePoint, error) {
	query := `
		SELECT date, adj_close, volume
		FROM price_points
		WHERE ticker = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC
	`

	rows, err := s.pool.Query(ctx, query, ticker, domain.Day(start), domain.Day(end))
	if err != nil {
		return nil, fmt.Errorf("get prices by range: %w", err)
	}
	defer rows.Close()

	var points []domain.PricePoint
	for rows.Next() {
		var p domain.PricePoint
		if err := rows.Scan(&p.Date, &p.AdjClose, &p.Volume); err != nil {
			return nil, fmt.Errorf("scan price point: %w", err)
		}
		p.Date = domain.Day(p.Date)
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price points: %w", err)
	}
	return points, nil
}

// LatestDate returns the most recent archived date for ticker.
func (s *PriceStore) LatestDate(ctx context.Context, ticker string) (time.Time, error) {
	return latestDate(ctx, s.pool, `SELECT max(date) FROM price_points WHERE ticker = $1`, ticker)
}

// IndicatorStore implements storage.IndicatorStore using PostgreSQL.
type IndicatorStore struct {
	pool *Pool
}

// NewIndicatorStore creates a new IndicatorStore.
func NewIndicatorStore(pool *Pool) *IndicatorStore {
	return &IndicatorStore{pool: pool}
}

// Compile-time interface check.
var _ storage.IndicatorStore = (*IndicatorStore)(nil)

// InsertBulk copies observations for code in one transaction. Fails entire batch on any duplicate.
func (s *IndicatorStore) InsertBulk(ctx context.Context, code string, points []domain.IndicatorPoint) error {
	if code == "" {
		return storage.ErrInvalidInput
	}
	if len(points) == 0 {
		return nil
	}

	dates := make([]time.Time, len(points))
	for i, p := range points {
		dates[i] = p.Date
	}
	if err := storage.CheckBatchDates(dates); err != nil {
		return err
	}

	rows := make([][]any, len(points))
	for i, p := range points {
		rows[i] = []any{code, domain.Day(p.Date), p.Value}
	}

	return copyInTx(ctx, s.pool, "indicator_points", []string{"code", "date", "value"}, rows)
}

// GetByRange retrieves observations for code within [start, end], ordered by date ASC.
func (s *IndicatorStore) GetByRange(ctx context.Context, code string, start, end time.Time) ([]domain.IndicatorPoint, error) {
	query := `
		SELECT date, value
		FROM indicator_points
		WHERE code = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC
	`

	rows, err := s.pool.Query(ctx, query, code, domain.Day(start), domain.Day(end))
	if err != nil {
		return nil, fmt.Errorf("get indicator by range: %w", err)
	}
	defer rows.Close()

	var points []domain.IndicatorPoint
	for rows.Next() {
		var p domain.IndicatorPoint
		if err := rows.Scan(&p.Date, &p.Value); err != nil {
			return nil, fmt.Errorf("scan indicator point: %w", err)
		}
		p.Date = domain.Day(p.Date)
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate indicator points: %w", err)
	}
	return points, nil
}

// LatestDate returns the most recent archived date for code.
func (s *IndicatorStore) LatestDate(ctx context.Context, code string) (time.Time, error) {
	return latestDate(ctx, s.pool, `SELECT max(date) FROM indicator_points WHERE code = $1`, code)
}

// copyInTx bulk-loads rows with COPY inside a transaction. A unique
// violation aborts the whole batch.
func copyInTx(ctx context.Context, pool *Pool, table string, columns []string, rows [][]any) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows)); err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("copy into %s: %w", table, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func latestDate(ctx context.Context, pool *Pool, query, id string) (time.Time, error) {
	var last *time.Time
	if err := pool.QueryRow(ctx, query, id).Scan(&last); err != nil {
		if isNotFoundError(err) {
			return time.Time{}, storage.ErrNotFound
		}
		return time.Time{}, fmt.Errorf("latest date for %s: %w", id, err)
	}
	if last == nil {
		return time.Time{}, storage.ErrNotFound
	}
	return domain.Day(*last), nil
}

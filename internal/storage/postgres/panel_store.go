package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"market-feature-lab/internal/domain"
	"market-feature-lab/internal/storage"
)

// PanelStore implements storage.PanelStore using PostgreSQL.
// Save replaces an existing panel of the same name in one transaction.
type PanelStore struct {
	pool *Pool
}

// NewPanelStore creates a new PanelStore.
func NewPanelStore(pool *Pool) *PanelStore {
	return &PanelStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PanelStore = (*PanelStore)(nil)

// Save deletes any panel stored under name and writes p in the same transaction.
func (s *PanelStore) Save(ctx context.Context, name string, p *domain.Panel) error {
	if err := storage.ValidatePanel(name, p); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// panel_values rows cascade.
	if _, err := tx.Exec(ctx, `DELETE FROM panels WHERE name = $1`, name); err != nil {
		return fmt.Errorf("delete panel %s: %w", name, err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO panels (name, columns, row_count) VALUES ($1, $2, $3)`,
		name, p.Columns, p.NumRows(),
	)
	if err != nil {
		return fmt.Errorf("insert panel %s: %w", name, err)
	}

	rows := make([][]any, 0, p.NumRows()*p.NumColumns())
	for r, d := range p.Dates {
		for c := range p.Columns {
			rows = append(rows, []any{name, d, int32(c), p.Values[c][r]})
		}
	}
	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"panel_values"},
		[]string{"panel_name", "date", "column_idx", "value"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("copy panel values: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Load retrieves the panel stored under name.
func (s *PanelStore) Load(ctx context.Context, name string) (*domain.Panel, error) {
	var columns []string
	var rowCount int32
	err := s.pool.QueryRow(ctx,
		`SELECT columns, row_count FROM panels WHERE name = $1`, name,
	).Scan(&columns, &rowCount)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get panel %s: %w", name, err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT date, column_idx, value
		FROM panel_values
		WHERE panel_name = $1
		ORDER BY date ASC, column_idx ASC
	`, name)
	if err != nil {
		return nil, fmt.Errorf("get panel values %s: %w", name, err)
	}
	defer rows.Close()

	p := &domain.Panel{
		Dates:   make([]time.Time, 0, rowCount),
		Columns: columns,
		Values:  make([][]float64, len(columns)),
	}
	for c := range p.Values {
		p.Values[c] = make([]float64, 0, rowCount)
	}

	for rows.Next() {
		var (
			d     time.Time
			idx   int32
			value float64
		)
		if err := rows.Scan(&d, &idx, &value); err != nil {
			return nil, fmt.Errorf("scan panel value: %w", err)
		}
		if int(idx) >= len(columns) {
			return nil, fmt.Errorf("%w: column index %d out of range", storage.ErrInvalidInput, idx)
		}
		d = domain.Day(d)
		if n := len(p.Dates); n == 0 || !p.Dates[n-1].Equal(d) {
			p.Dates = append(p.Dates, d)
		}
		p.Values[idx] = append(p.Values[idx], value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate panel values: %w", err)
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("panel %s is incomplete: %w", name, err)
	}
	return p, nil
}

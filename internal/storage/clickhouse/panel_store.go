package clickhouse

import (
	"context"
	"fmt"
	"time"

	"market-feature-lab/internal/domain"
	"market-feature-lab/internal/storage"
)

// PanelStore implements storage.PanelStore using ClickHouse.
// Panels are append-only: saving an existing name returns ErrDuplicateKey.
type PanelStore struct {
	conn *Conn
}

// NewPanelStore creates a new PanelStore.
func NewPanelStore(conn *Conn) *PanelStore {
	return &PanelStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PanelStore = (*PanelStore)(nil)

// Save inserts the values batch, then the header row. MergeTree does not
// enforce uniqueness, so the name is checked first.
func (s *PanelStore) Save(ctx context.Context, name string, p *domain.Panel) error {
	if err := storage.ValidatePanel(name, p); err != nil {
		return err
	}

	exists, err := s.exists(ctx, name)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO panel_values (panel_name, date, column_idx, value)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	for r, d := range p.Dates {
		for c := range p.Columns {
			if err := batch.Append(name, d, uint32(c), p.Values[c][r]); err != nil {
				return fmt.Errorf("append to batch: %w", err)
			}
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	err = s.conn.Exec(ctx,
		`INSERT INTO panels (name, columns, row_count) VALUES (?, ?, ?)`,
		name, p.Columns, uint32(p.NumRows()),
	)
	if err != nil {
		return fmt.Errorf("insert panel %s: %w", name, err)
	}
	return nil
}

// Load retrieves the panel stored under name.
func (s *PanelStore) Load(ctx context.Context, name string) (*domain.Panel, error) {
	var (
		columns  []string
		rowCount uint32
	)
	rows, err := s.conn.Query(ctx, `SELECT columns, row_count FROM panels WHERE name = ? LIMIT 1`, name)
	if err != nil {
		return nil, fmt.Errorf("get panel %s: %w", name, err)
	}
	found := rows.Next()
	if found {
		err = rows.Scan(&columns, &rowCount)
	}
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("scan panel %s: %w", name, err)
	}
	if !found {
		return nil, storage.ErrNotFound
	}

	valueRows, err := s.conn.Query(ctx, `
		SELECT date, column_idx, value
		FROM panel_values
		WHERE panel_name = ?
		ORDER BY date ASC, column_idx ASC
	`, name)
	if err != nil {
		return nil, fmt.Errorf("get panel values %s: %w", name, err)
	}
	defer valueRows.Close()

	p := &domain.Panel{
		Dates:   make([]time.Time, 0, rowCount),
		Columns: columns,
		Values:  make([][]float64, len(columns)),
	}
	for c := range p.Values {
		p.Values[c] = make([]float64, 0, rowCount)
	}

	for valueRows.Next() {
		var (
			d     time.Time
			idx   uint32
			value float64
		)
		if err := valueRows.Scan(&d, &idx, &value); err != nil {
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
	if err := valueRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate panel values: %w", err)
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("panel %s is incomplete: %w", name, err)
	}
	return p, nil
}

// exists checks if a panel header or any value row uses name.
func (s *PanelStore) exists(ctx context.Context, name string) (bool, error) {
	var count uint64
	row := s.conn.QueryRow(ctx, `
		SELECT (SELECT count() FROM panels WHERE name = ?) + (SELECT count() FROM panel_values WHERE panel_name = ?)
	`, name, name)
	if err := row.Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

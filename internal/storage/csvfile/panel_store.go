// Package csvfile persists feature panels as CSV files, one per panel name.
//
// The first column is the date in YYYY-MM-DD form; the remaining columns
// are the panel columns in order. Floats are written in shortest
// round-trip form so Load returns the saved values exactly.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"market-feature-lab/internal/domain"
	"market-feature-lab/internal/storage"
)

// dateHeader names the index column.
const dateHeader = "date"

// PanelStore implements storage.PanelStore on a directory.
type PanelStore struct {
	dir string
}

// NewPanelStore creates a store writing to dir. The directory is created
// on first save.
func NewPanelStore(dir string) *PanelStore {
	return &PanelStore{dir: dir}
}

// Compile-time interface check.
var _ storage.PanelStore = (*PanelStore)(nil)

// Path returns the file backing name.
func (s *PanelStore) Path(name string) string {
	return filepath.Join(s.dir, name+".csv")
}

// Save writes p to a temporary file and renames it over the target, so a
// concurrent reader sees either the old or the new panel.
func (s *PanelStore) Save(ctx context.Context, name string, p *domain.Panel) error {
	if err := storage.ValidatePanel(name, p); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create panel dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := writePanel(tmp, p); err != nil {
		tmp.Close()
		return fmt.Errorf("write panel %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path(name)); err != nil {
		return fmt.Errorf("rename panel file: %w", err)
	}
	return nil
}

// Load reads the panel stored under name.
func (s *PanelStore) Load(ctx context.Context, name string) (*domain.Panel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("open panel %s: %w", name, err)
	}
	defer f.Close()

	p, err := readPanel(f)
	if err != nil {
		return nil, fmt.Errorf("read panel %s: %w", name, err)
	}
	return p, nil
}

func writePanel(w io.Writer, p *domain.Panel) error {
	cw := csv.NewWriter(w)

	header := make([]string, 0, p.NumColumns()+1)
	header = append(header, dateHeader)
	header = append(header, p.Columns...)
	if err := cw.Write(header); err != nil {
		return err
	}

	record := make([]string, p.NumColumns()+1)
	for r, d := range p.Dates {
		record[0] = d.Format(domain.DateLayout)
		for c := range p.Columns {
			record[c+1] = strconv.FormatFloat(p.Values[c][r], 'g', -1, 64)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func readPanel(r io.Reader) (*domain.Panel, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) == 0 || header[0] != dateHeader {
		return nil, fmt.Errorf("%w: first column must be %q", storage.ErrInvalidInput, dateHeader)
	}

	columns := append([]string(nil), header[1:]...)
	values := make([][]float64, len(columns))
	var dates []time.Time

	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		d, err := domain.ParseDay(record[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		dates = append(dates, d)
		for c := range columns {
			v, err := strconv.ParseFloat(record[c+1], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, columns[c], err)
			}
			values[c] = append(values[c], v)
		}
	}

	for c := range values {
		if values[c] == nil {
			values[c] = []float64{}
		}
	}
	p := &domain.Panel{Dates: dates, Columns: columns, Values: values}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

package domain

import (
	"fmt"
	"math"
	"time"
)

// Panel is the assembled date-indexed feature table.
// Values is column-major: Values[c][r] is column c at Dates[r].
type Panel struct {
	Dates   []time.Time
	Columns []string
	Values  [][]float64
}

// NewPanel allocates a NaN-filled panel.
func NewPanel(dates []time.Time, columns []string) *Panel {
	p := &Panel{
		Dates:   dates,
		Columns: columns,
		Values:  make([][]float64, len(columns)),
	}
	for c := range columns {
		col := make([]float64, len(dates))
		for r := range col {
			col[r] = math.NaN()
		}
		p.Values[c] = col
	}
	return p
}

// NumRows returns the number of dates.
func (p *Panel) NumRows() int {
	return len(p.Dates)
}

// NumColumns returns the number of columns.
func (p *Panel) NumColumns() int {
	return len(p.Columns)
}

// ColumnIndex returns the position of name or -1.
func (p *Panel) ColumnIndex(name string) int {
	for i, c := range p.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns the values of the named column or nil.
func (p *Panel) Column(name string) []float64 {
	if i := p.ColumnIndex(name); i >= 0 {
		return p.Values[i]
	}
	return nil
}

// Row returns a copy of row r across all columns.
func (p *Panel) Row(r int) []float64 {
	row := make([]float64, len(p.Columns))
	for c := range p.Columns {
		row[c] = p.Values[c][r]
	}
	return row
}

// Validate checks column uniqueness, value lengths and date order.
func (p *Panel) Validate() error {
	if len(p.Values) != len(p.Columns) {
		return fmt.Errorf("%w: %d columns but %d value vectors",
			ErrInvalidSeries, len(p.Columns), len(p.Values))
	}
	seen := make(map[string]struct{}, len(p.Columns))
	for c, name := range p.Columns {
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: duplicate column %s", ErrInvalidSeries, name)
		}
		seen[name] = struct{}{}
		if len(p.Values[c]) != len(p.Dates) {
			return fmt.Errorf("%w: column %s has %d values for %d dates",
				ErrInvalidSeries, name, len(p.Values[c]), len(p.Dates))
		}
	}
	for r := 1; r < len(p.Dates); r++ {
		if !p.Dates[r].After(p.Dates[r-1]) {
			return fmt.Errorf("%w: dates not strictly increasing at row %d", ErrInvalidSeries, r)
		}
	}
	return nil
}

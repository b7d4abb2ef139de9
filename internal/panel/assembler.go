// Package panel joins per-instrument feature frames and macro indicators
// onto a calendar-day index and cleans the result into the final table.
package panel

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"market-feature-lab/internal/domain"
	"market-feature-lab/internal/logging"
)

// Options configures an Assembler.
type Options struct {
	// CalendarStart and CalendarEnd bound the master daily index.
	CalendarStart time.Time
	CalendarEnd   time.Time

	// RangeStart and RangeEnd bound the persisted analysis range (inclusive).
	RangeStart time.Time
	RangeEnd   time.Time

	// RateOfChange lists indicator aliases converted to (v - prev) / v.
	RateOfChange []string

	Logger *slog.Logger
}

// Assembler builds the final feature panel.
type Assembler struct {
	calendar   []time.Time
	rangeStart time.Time
	rangeEnd   time.Time
	roc        map[string]bool
	logger     *slog.Logger
}

// NewAssembler validates the date bounds and builds the master calendar.
func NewAssembler(opts Options) (*Assembler, error) {
	calStart, calEnd := domain.Day(opts.CalendarStart), domain.Day(opts.CalendarEnd)
	if calEnd.Before(calStart) {
		return nil, fmt.Errorf("calendar end %s before start %s",
			calEnd.Format(domain.DateLayout), calStart.Format(domain.DateLayout))
	}
	rangeStart, rangeEnd := domain.Day(opts.RangeStart), domain.Day(opts.RangeEnd)
	if rangeEnd.Before(rangeStart) {
		return nil, fmt.Errorf("range end %s before start %s",
			rangeEnd.Format(domain.DateLayout), rangeStart.Format(domain.DateLayout))
	}

	roc := make(map[string]bool, len(opts.RateOfChange))
	for _, alias := range opts.RateOfChange {
		roc[alias] = true
	}

	return &Assembler{
		calendar:   Calendar(calStart, calEnd),
		rangeStart: rangeStart,
		rangeEnd:   rangeEnd,
		roc:        roc,
		logger:     logging.OrNop(opts.Logger),
	}, nil
}

// Calendar returns every calendar day in [start, end].
func Calendar(start, end time.Time) []time.Time {
	start, end = domain.Day(start), domain.Day(end)
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// column is one panel column on the master calendar before cleaning.
type column struct {
	name   string
	values []float64
}

// Assemble merges frames (in order) and indicators (in order) onto the
// master calendar, forward-fills every NaN after a column's first value,
// drops incomplete rows and truncates to the analysis range. Returns
// ErrEmptyPanel if no rows remain.
func (a *Assembler) Assemble(frames []*domain.Frame, indicators []*domain.IndicatorSeries) (*domain.Panel, error) {
	index := make(map[time.Time]int, len(a.calendar))
	for i, d := range a.calendar {
		index[d] = i
	}

	var cols []*column
	seen := make(map[string]struct{})
	add := func(c *column) error {
		if _, dup := seen[c.name]; dup {
			return fmt.Errorf("%w: duplicate column %s", domain.ErrInvalidSeries, c.name)
		}
		seen[c.name] = struct{}{}
		cols = append(cols, c)
		return nil
	}

	for _, f := range frames {
		for _, fc := range f.Columns {
			if err := add(a.reindex(index, fc.Name, f.Dates, fc.Values)); err != nil {
				return nil, err
			}
		}
	}

	for _, ind := range indicators {
		dates, values := indicatorValues(ind)
		if a.roc[ind.Alias] {
			values = RateOfChange(values)
		}
		if err := add(a.reindex(index, ind.Alias, dates, values)); err != nil {
			return nil, err
		}
	}

	for _, c := range cols {
		ForwardFill(c.values)
	}

	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
	}

	keep := a.keepRows(cols)
	dates := make([]time.Time, 0, len(keep))
	for _, r := range keep {
		dates = append(dates, a.calendar[r])
	}

	p := domain.NewPanel(dates, names)
	for c, col := range cols {
		for i, r := range keep {
			p.Values[c][i] = col.values[r]
		}
	}

	if p.NumRows() == 0 {
		return nil, fmt.Errorf("%w: no complete rows in %s..%s (%d columns)", domain.ErrEmptyPanel,
			a.rangeStart.Format(domain.DateLayout), a.rangeEnd.Format(domain.DateLayout), len(names))
	}

	a.logger.Info("panel assembled",
		"rows", p.NumRows(),
		"columns", p.NumColumns(),
		"first", p.Dates[0].Format(domain.DateLayout),
		"last", p.Dates[len(p.Dates)-1].Format(domain.DateLayout),
	)
	return p, nil
}

// keepRows returns calendar positions with no NaN in any column that fall
// inside the analysis range.
func (a *Assembler) keepRows(cols []*column) []int {
	var keep []int
	for r, d := range a.calendar {
		if d.Before(a.rangeStart) || d.After(a.rangeEnd) {
			continue
		}
		complete := true
		for _, c := range cols {
			if math.IsNaN(c.values[r]) {
				complete = false
				break
			}
		}
		if complete {
			keep = append(keep, r)
		}
	}
	return keep
}

// reindex places a series on the master calendar. Dates outside the
// calendar are ignored.
func (a *Assembler) reindex(index map[time.Time]int, name string, dates []time.Time, values []float64) *column {
	c := &column{
		name:   name,
		values: make([]float64, len(a.calendar)),
	}
	for i := range c.values {
		c.values[i] = math.NaN()
	}

	dropped := 0
	for i, d := range dates {
		r, ok := index[domain.Day(d)]
		if !ok {
			dropped++
			continue
		}
		c.values[r] = values[i]
	}
	if dropped > 0 {
		a.logger.Debug("dates outside calendar ignored", "column", name, "count", dropped)
	}
	return c
}

func indicatorValues(s *domain.IndicatorSeries) ([]time.Time, []float64) {
	dates := make([]time.Time, len(s.Points))
	values := make([]float64, len(s.Points))
	for i, p := range s.Points {
		dates[i] = p.Date
		values[i] = p.Value
	}
	return dates, values
}

// RateOfChange returns (v[i] - v[i-1]) / v[i]; the first value is NaN.
func RateOfChange(v []float64) []float64 {
	out := make([]float64, len(v))
	for i := range v {
		if i == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = (v[i] - v[i-1]) / v[i]
	}
	return out
}

// ForwardFill replaces each NaN with the last non-NaN value before it,
// whether the NaN is a calendar gap or came from the feature computation.
// Leading NaNs stay NaN.
func ForwardFill(values []float64) {
	last := math.NaN()
	for i, v := range values {
		if math.IsNaN(v) {
			values[i] = last
			continue
		}
		last = v
	}
}

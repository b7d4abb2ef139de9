package reporting

import (
	"errors"
	"math"
	"strings"
	"time"

	"market-feature-lab/internal/domain"
)

const targetSuffix = "_TARGET"

// Summarize computes the report of panel p stored under name.
func Summarize(name string, p *domain.Panel, now time.Time) (*Report, error) {
	if p == nil || p.NumRows() == 0 {
		return nil, errors.New("panel has no rows")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	r := &Report{
		Panel:       name,
		GeneratedAt: now.UTC(),
		Rows:        p.NumRows(),
		Columns:     p.NumColumns(),
		First:       p.Dates[0],
		Last:        p.Dates[p.NumRows()-1],
	}
	for c, col := range p.Columns {
		if ticker, ok := strings.CutSuffix(col, targetSuffix); ok {
			r.Instruments = append(r.Instruments, ticker)
		}
		r.Stats = append(r.Stats, describe(col, p.Values[c]))
	}
	return r, nil
}

func describe(name string, values []float64) ColumnStats {
	s := ColumnStats{Name: name, Min: math.Inf(1), Max: math.Inf(-1)}
	for _, v := range values {
		s.Mean += v
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	s.Mean /= float64(len(values))

	ss := 0.0
	for _, v := range values {
		d := v - s.Mean
		ss += d * d
	}
	s.Std = math.Sqrt(ss / float64(len(values)))
	return s
}

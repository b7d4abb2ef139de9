package domain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// PricePoint is one daily observation of an exchange-traded instrument.
type PricePoint struct {
	Date     time.Time // trading day, UTC midnight
	AdjClose float64   // split/dividend adjusted close
	Volume   float64   // share volume
}

// DollarVolume returns AdjClose * Volume.
func (p PricePoint) DollarVolume() float64 {
	return p.AdjClose * p.Volume
}

// RawSeries is the ordered daily history of one instrument with its
// 1-day returns derived once at construction.
type RawSeries struct {
	Ticker       string
	Points       []PricePoint
	SimpleReturn []float64 // (p[i]-p[i-1])/p[i-1], NaN at index 0
	LogReturn    []float64 // ln p[i] - ln p[i-1], NaN at index 0
}

// NewRawSeries sorts points by date and derives returns.
// Returns ErrInvalidSeries if two points share a date.
func NewRawSeries(ticker string, points []PricePoint) (*RawSeries, error) {
	sorted := make([]PricePoint, len(points))
	for i, p := range points {
		p.Date = Day(p.Date)
		sorted[i] = p
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	for i := 1; i < len(sorted); i++ {
		if sorted[i].Date.Equal(sorted[i-1].Date) {
			return nil, fmt.Errorf("%w: %s has duplicate date %s",
				ErrInvalidSeries, ticker, sorted[i].Date.Format(DateLayout))
		}
	}

	s := &RawSeries{
		Ticker:       ticker,
		Points:       sorted,
		SimpleReturn: make([]float64, len(sorted)),
		LogReturn:    make([]float64, len(sorted)),
	}
	for i := range sorted {
		if i == 0 {
			s.SimpleReturn[i] = math.NaN()
			s.LogReturn[i] = math.NaN()
			continue
		}
		prev, cur := sorted[i-1].AdjClose, sorted[i].AdjClose
		s.SimpleReturn[i] = (cur - prev) / prev
		s.LogReturn[i] = math.Log(cur) - math.Log(prev)
	}
	return s, nil
}

// Len returns the number of observations.
func (s *RawSeries) Len() int {
	return len(s.Points)
}

// Dates returns the observation dates in order.
func (s *RawSeries) Dates() []time.Time {
	dates := make([]time.Time, len(s.Points))
	for i, p := range s.Points {
		dates[i] = p.Date
	}
	return dates
}

// Closes returns adjusted closes in order.
func (s *RawSeries) Closes() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.AdjClose
	}
	return out
}

// DollarVolumes returns price * volume per observation.
func (s *RawSeries) DollarVolumes() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.DollarVolume()
	}
	return out
}

// IndicatorPoint is one published value of a macroeconomic indicator.
type IndicatorPoint struct {
	Date  time.Time
	Value float64
}

// IndicatorSeries is a single-valued indicator series.
// Code is the upstream identifier (e.g. DTB3); Alias is the panel column name.
type IndicatorSeries struct {
	Code   string
	Alias  string
	Points []IndicatorPoint
}

// NewIndicatorSeries sorts points by date.
// Returns ErrInvalidSeries if two points share a date.
func NewIndicatorSeries(code, alias string, points []IndicatorPoint) (*IndicatorSeries, error) {
	sorted := make([]IndicatorPoint, len(points))
	for i, p := range points {
		p.Date = Day(p.Date)
		sorted[i] = p
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	for i := 1; i < len(sorted); i++ {
		if sorted[i].Date.Equal(sorted[i-1].Date) {
			return nil, fmt.Errorf("%w: %s has duplicate date %s",
				ErrInvalidSeries, code, sorted[i].Date.Format(DateLayout))
		}
	}
	return &IndicatorSeries{Code: code, Alias: alias, Points: sorted}, nil
}

// DateLayout is the canonical day format used in files and logs.
const DateLayout = "2006-01-02"

// Day truncates t to UTC midnight of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD date.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return Day(t), nil
}

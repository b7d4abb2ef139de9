package domain

import (
	"fmt"
	"time"
)

// Metric identifies a per-horizon feature kind.
type Metric string

// Supported metrics, in panel column order.
const (
	MetricReturn     Metric = "RET" // rolling return
	MetricVolatility Metric = "STD" // rolling log-return std
	MetricVolume     Metric = "VOL" // rolling dollar volume
	MetricSimulated  Metric = "GBM" // Monte-Carlo expected return
)

// MetricOrder is the column order of metrics within one horizon.
var MetricOrder = []Metric{MetricReturn, MetricVolatility, MetricVolume, MetricSimulated}

// Valid reports whether m is a known metric.
func (m Metric) Valid() bool {
	for _, known := range MetricOrder {
		if m == known {
			return true
		}
	}
	return false
}

// ColumnKey addresses one per-instrument feature column.
type ColumnKey struct {
	ID      string
	Horizon string
	Metric  Metric
}

// String renders {ID}_{HORIZON}_{METRIC}.
func (k ColumnKey) String() string {
	return fmt.Sprintf("%s_%s_%s", k.ID, k.Horizon, k.Metric)
}

// TargetColumn returns the label column name for an instrument.
func TargetColumn(id string) string {
	return id + "_TARGET"
}

// FeatureColumn is a named numeric series indexed by its owning Frame's dates.
// NaN marks a missing value.
type FeatureColumn struct {
	Name   string
	Values []float64
}

// Frame is a block of feature columns sharing one date index,
// typically all features of one instrument on its trading days.
type Frame struct {
	ID      string
	Dates   []time.Time
	Columns []*FeatureColumn
}

// NewFrame creates an empty frame over dates.
func NewFrame(id string, dates []time.Time) *Frame {
	return &Frame{ID: id, Dates: dates}
}

// Add appends a column. Values must match the date index length.
func (f *Frame) Add(name string, values []float64) error {
	if len(values) != len(f.Dates) {
		return fmt.Errorf("%w: column %s has %d values for %d dates",
			ErrInvalidSeries, name, len(values), len(f.Dates))
	}
	f.Columns = append(f.Columns, &FeatureColumn{Name: name, Values: values})
	return nil
}

// Column returns the named column or nil.
func (f *Frame) Column(name string) *FeatureColumn {
	for _, c := range f.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Package reporting summarizes a persisted feature panel as Markdown and CSV.
package reporting

import "time"

// Report describes one panel.
type Report struct {
	Panel       string
	GeneratedAt time.Time
	Rows        int
	Columns     int
	First       time.Time
	Last        time.Time
	Instruments []string // tickers with a target column, in panel order
	Stats       []ColumnStats
}

// ColumnStats holds descriptive statistics of one panel column.
type ColumnStats struct {
	Name string
	Mean float64
	Std  float64 // population
	Min  float64
	Max  float64
}

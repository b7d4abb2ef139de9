package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"market-feature-lab/internal/domain"
)

// CSVDir reads series from a directory of CSV files:
//
//	<root>/prices/<TICKER>.csv       date, adj close, volume columns
//	<root>/indicators/<CODE>.csv     date column and one value column
//
// Header names are matched case-insensitively, so Yahoo history downloads
// ("Date,...,Adj Close,Volume") and FRED downloads ("DATE,<CODE>") load as-is.
type CSVDir struct {
	root string
}

var (
	_ PriceSource     = (*CSVDir)(nil)
	_ IndicatorSource = (*CSVDir)(nil)
)

// NewCSVDir creates a source rooted at dir.
func NewCSVDir(dir string) *CSVDir {
	return &CSVDir{root: dir}
}

// PricePath returns the file read for ticker.
func (d *CSVDir) PricePath(ticker string) string {
	return filepath.Join(d.root, "prices", ticker+".csv")
}

// IndicatorPath returns the file read for code.
func (d *CSVDir) IndicatorPath(code string) string {
	return filepath.Join(d.root, "indicators", code+".csv")
}

// FetchPrices reads the price file of ticker.
func (d *CSVDir) FetchPrices(ctx context.Context, ticker string, start, end time.Time) ([]domain.PricePoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	header, rows, err := readCSV(d.PricePath(ticker))
	if err != nil {
		return nil, unavailable(ticker, err)
	}

	dateCol := columnIndex(header, "date")
	closeCol := columnIndex(header, "adj close", "adj_close", "adjclose")
	if closeCol < 0 {
		closeCol = columnIndex(header, "close")
	}
	volCol := columnIndex(header, "volume")
	if dateCol < 0 || closeCol < 0 || volCol < 0 {
		return nil, unavailable(ticker, fmt.Errorf("header %v lacks date/close/volume", header))
	}

	var points []domain.PricePoint
	for i, row := range rows {
		date, err := domain.ParseDay(row[dateCol])
		if err != nil {
			return nil, unavailable(ticker, fmt.Errorf("row %d: %w", i+2, err))
		}
		if !inRange(date, start, end) {
			continue
		}
		closeV, err := parseCell(row[closeCol])
		if err != nil {
			return nil, unavailable(ticker, fmt.Errorf("row %d close: %w", i+2, err))
		}
		if math.IsNaN(closeV) {
			continue
		}
		vol, err := parseCell(row[volCol])
		if err != nil {
			return nil, unavailable(ticker, fmt.Errorf("row %d volume: %w", i+2, err))
		}
		points = append(points, domain.PricePoint{Date: date, AdjClose: closeV, Volume: vol})
	}
	if len(points) == 0 {
		return nil, unavailable(ticker, errors.New("no rows in range"))
	}
	return points, nil
}

// FetchIndicator reads the indicator file of code. The value column is
// the one named "value" or code, else the second column.
func (d *CSVDir) FetchIndicator(ctx context.Context, code string, start, end time.Time) ([]domain.IndicatorPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	header, rows, err := readCSV(d.IndicatorPath(code))
	if err != nil {
		return nil, unavailable(code, err)
	}

	dateCol := columnIndex(header, "date")
	valCol := columnIndex(header, "value", strings.ToLower(code))
	if valCol < 0 && len(header) >= 2 {
		valCol = 1
	}
	if dateCol < 0 || valCol < 0 {
		return nil, unavailable(code, fmt.Errorf("header %v lacks date/value", header))
	}

	var points []domain.IndicatorPoint
	for i, row := range rows {
		date, err := domain.ParseDay(row[dateCol])
		if err != nil {
			return nil, unavailable(code, fmt.Errorf("row %d: %w", i+2, err))
		}
		if !inRange(date, start, end) {
			continue
		}
		v, err := parseCell(row[valCol])
		if err != nil {
			return nil, unavailable(code, fmt.Errorf("row %d value: %w", i+2, err))
		}
		if math.IsNaN(v) {
			continue
		}
		points = append(points, domain.IndicatorPoint{Date: date, Value: v})
	}
	if len(points) == 0 {
		return nil, unavailable(code, errors.New("no rows in range"))
	}
	return points, nil
}

func readCSV(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	header, err := r.Read()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("%s: empty file", path)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	rows, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return header, rows, nil
}

func columnIndex(header []string, names ...string) int {
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		for _, n := range names {
			if h == n {
				return i
			}
		}
	}
	return -1
}

// parseCell parses a numeric cell; blanks, "." and "null" are NaN.
func parseCell(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", ".", "null", "nan":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

package source

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"market-feature-lab/internal/domain"
)

// Yahoo fetches daily bars from the Yahoo Finance chart API.
type Yahoo struct {
	baseURL string
	http    httpGetter
}

var _ PriceSource = (*Yahoo)(nil)

// NewYahoo creates a chart API client rooted at baseURL
// (e.g. https://query1.finance.yahoo.com).
func NewYahoo(baseURL string, opts ...Option) *Yahoo {
	return &Yahoo{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    newGetter(opts),
	}
}

// FetchPrices returns adjusted close and volume for ticker in [start, end].
// Bars with a missing close are dropped.
func (y *Yahoo) FetchPrices(ctx context.Context, ticker string, start, end time.Time) ([]domain.PricePoint, error) {
	q := url.Values{}
	q.Set("period1", strconv.FormatInt(domain.Day(start).Unix(), 10))
	// period2 is exclusive.
	q.Set("period2", strconv.FormatInt(domain.Day(end).AddDate(0, 0, 1).Unix(), 10))
	q.Set("interval", "1d")
	q.Set("events", "history")
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", y.baseURL, url.PathEscape(ticker), q.Encode())

	body, err := y.http.get(ctx, endpoint)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) {
			if desc := gjson.GetBytes(se.Body, "chart.error.description"); desc.Exists() {
				return nil, unavailable(ticker, errors.New(desc.String()))
			}
		}
		return nil, unavailable(ticker, err)
	}

	points, err := parseChart(body, start, end)
	if err != nil {
		return nil, unavailable(ticker, err)
	}
	return points, nil
}

// parseChart extracts bars from a chart API response.
func parseChart(body []byte, start, end time.Time) ([]domain.PricePoint, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("invalid JSON response")
	}
	if e := gjson.GetBytes(body, "chart.error.description"); e.Exists() {
		return nil, errors.New(e.String())
	}

	result := gjson.GetBytes(body, "chart.result.0")
	if !result.Exists() {
		return nil, errors.New("no chart result")
	}

	timestamps := result.Get("timestamp").Array()
	closes := result.Get("indicators.adjclose.0.adjclose").Array()
	if len(closes) == 0 {
		// Some instruments carry no adjusted series; fall back to close.
		closes = result.Get("indicators.quote.0.close").Array()
	}
	volumes := result.Get("indicators.quote.0.volume").Array()

	if len(timestamps) == 0 {
		return nil, errors.New("no bars in range")
	}
	if len(closes) != len(timestamps) {
		return nil, fmt.Errorf("close count %d does not match timestamp count %d", len(closes), len(timestamps))
	}

	points := make([]domain.PricePoint, 0, len(timestamps))
	for i, ts := range timestamps {
		if closes[i].Type == gjson.Null {
			continue
		}
		date := domain.Day(time.Unix(ts.Int(), 0).UTC())
		if !inRange(date, start, end) {
			continue
		}
		volume := math.NaN()
		if i < len(volumes) && volumes[i].Type != gjson.Null {
			volume = volumes[i].Float()
		}
		points = append(points, domain.PricePoint{
			Date:     date,
			AdjClose: closes[i].Float(),
			Volume:   volume,
		})
	}
	if len(points) == 0 {
		return nil, errors.New("no bars in range")
	}
	return points, nil
}

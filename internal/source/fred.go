package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"market-feature-lab/internal/domain"
)

// fredMissing marks an observation with no value.
const fredMissing = "."

// Fred fetches series observations from the FRED API.
type Fred struct {
	baseURL string
	apiKey  string
	http    httpGetter
}

var _ IndicatorSource = (*Fred)(nil)

// NewFred creates a FRED client rooted at baseURL (e.g. https://api.stlouisfed.org).
func NewFred(baseURL, apiKey string, opts ...Option) *Fred {
	return &Fred{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    newGetter(opts),
	}
}

// FetchIndicator returns observations of code in [start, end]. Missing
// observations are skipped.
func (f *Fred) FetchIndicator(ctx context.Context, code string, start, end time.Time) ([]domain.IndicatorPoint, error) {
	if f.apiKey == "" {
		return nil, unavailable(code, errors.New("no FRED API key configured"))
	}

	q := url.Values{}
	q.Set("series_id", code)
	q.Set("api_key", f.apiKey)
	q.Set("file_type", "json")
	if !start.IsZero() {
		q.Set("observation_start", domain.Day(start).Format(domain.DateLayout))
	}
	if !end.IsZero() {
		q.Set("observation_end", domain.Day(end).Format(domain.DateLayout))
	}
	endpoint := fmt.Sprintf("%s/fred/series/observations?%s", f.baseURL, q.Encode())

	body, err := f.http.get(ctx, endpoint)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) {
			if msg := gjson.GetBytes(se.Body, "error_message"); msg.Exists() {
				return nil, unavailable(code, fmt.Errorf("status %d: %s", se.Code, msg.String()))
			}
		}
		return nil, unavailable(code, err)
	}

	points, err := parseObservations(body, start, end)
	if err != nil {
		return nil, unavailable(code, err)
	}
	return points, nil
}

func parseObservations(body []byte, start, end time.Time) ([]domain.IndicatorPoint, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("invalid JSON response")
	}
	obs := gjson.GetBytes(body, "observations")
	if !obs.IsArray() {
		return nil, errors.New("response has no observations")
	}

	var points []domain.IndicatorPoint
	var parseErr error
	obs.ForEach(func(_, o gjson.Result) bool {
		raw := o.Get("value").String()
		if raw == fredMissing || raw == "" {
			return true
		}
		date, err := domain.ParseDay(o.Get("date").String())
		if err != nil {
			parseErr = fmt.Errorf("observation date: %w", err)
			return false
		}
		if !inRange(date, start, end) {
			return true
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			parseErr = fmt.Errorf("observation %s value %q: %w", date.Format(domain.DateLayout), raw, err)
			return false
		}
		points = append(points, domain.IndicatorPoint{Date: date, Value: v})
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	if len(points) == 0 {
		return nil, errors.New("no observations in range")
	}
	return points, nil
}

package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-feature-lab/internal/domain"
)

const observationsBody = `{
  "realtime_start": "2021-03-01",
  "observations": [
    {"date": "2021-01-01", "value": "21.7"},
    {"date": "2021-01-04", "value": "."},
    {"date": "2021-01-05", "value": "25.34"}
  ]
}`

func TestFred_FetchIndicator(t *testing.T) {
	var query map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fred/series/observations", r.URL.Path)
		query = map[string]string{}
		for k, v := range r.URL.Query() {
			query[k] = v[0]
		}
		_, _ = w.Write([]byte(observationsBody))
	}))
	defer server.Close()

	f := NewFred(server.URL, "key123")
	points, err := f.FetchIndicator(context.Background(), "VIXCLS", d("2021-01-01"), d("2021-01-31"))
	require.NoError(t, err)

	assert.Equal(t, "VIXCLS", query["series_id"])
	assert.Equal(t, "key123", query["api_key"])
	assert.Equal(t, "json", query["file_type"])
	assert.Equal(t, "2021-01-01", query["observation_start"])
	assert.Equal(t, "2021-01-31", query["observation_end"])

	assert.Equal(t, []domain.IndicatorPoint{
		{Date: d("2021-01-01"), Value: 21.7},
		{Date: d("2021-01-05"), Value: 25.34},
	}, points)
}

func TestFred_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error_code":400,"error_message":"Bad Request.  The series does not exist."}`))
	}))
	defer server.Close()

	_, err := NewFred(server.URL, "key").FetchIndicator(context.Background(), "NOPE", d("2021-01-01"), d("2021-01-31"))
	require.ErrorIs(t, err, domain.ErrDataUnavailable)
	assert.Contains(t, err.Error(), "series does not exist")
}

func TestFred_MissingKey(t *testing.T) {
	_, err := NewFred("http://127.0.0.1:0", "").FetchIndicator(context.Background(), "VIXCLS", d("2021-01-01"), d("2021-01-31"))
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
}

func TestParseObservations_BadValue(t *testing.T) {
	_, err := parseObservations([]byte(`{"observations":[{"date":"2021-01-01","value":"abc"}]}`), d("2021-01-01"), d("2021-01-31"))
	assert.Error(t, err)

	_, err = parseObservations([]byte(`{"observations":[{"date":"2021-01-01","value":"."}]}`), d("2021-01-01"), d("2021-01-31"))
	assert.Error(t, err, "only missing values")
}

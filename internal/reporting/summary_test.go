package reporting

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-feature-lab/internal/domain"
)

func testPanel() *domain.Panel {
	d0 := time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)
	p := domain.NewPanel(
		[]time.Time{d0, d0.AddDate(0, 0, 1), d0.AddDate(0, 0, 2), d0.AddDate(0, 0, 3)},
		[]string{"SPY_TARGET", "SPY_1D_RET", "T3M"},
	)
	p.Values[0] = []float64{0.01, 0.02, 0.03, 0.04}
	p.Values[1] = []float64{1, 1, 1, 1}
	p.Values[2] = []float64{2, 4, 4, 6}
	return p
}

func TestSummarize(t *testing.T) {
	now := time.Date(2025, 1, 4, 12, 0, 0, 0, time.UTC)

	r, err := Summarize("market_data", testPanel(), now)
	require.NoError(t, err)

	assert.Equal(t, 4, r.Rows)
	assert.Equal(t, 3, r.Columns)
	assert.Equal(t, []string{"SPY"}, r.Instruments)
	assert.Equal(t, "2021-01-07", r.Last.Format(domain.DateLayout))

	t3m := r.Stats[2]
	assert.Equal(t, "T3M", t3m.Name)
	assert.InDelta(t, 4.0, t3m.Mean, 1e-12)
	assert.InDelta(t, 1.414213562, t3m.Std, 1e-9)
	assert.Equal(t, 2.0, t3m.Min)
	assert.Equal(t, 6.0, t3m.Max)
	assert.Equal(t, 0.0, r.Stats[1].Std)
}

func TestSummarize_EmptyPanel(t *testing.T) {
	_, err := Summarize("x", domain.NewPanel(nil, []string{"A"}), time.Now())
	assert.Error(t, err)
}

func TestRenderMarkdown(t *testing.T) {
	r, err := Summarize("market_data", testPanel(), time.Date(2025, 1, 4, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	md := RenderMarkdown(r)
	assert.True(t, strings.HasPrefix(md, "# Panel Report: market_data\n"))
	assert.Contains(t, md, "Generated: 2025-01-04T12:00:00Z")
	assert.Contains(t, md, "| Rows | 4 |")
	assert.Contains(t, md, "| First Date | 2021-01-04 |")
	assert.Contains(t, md, "| T3M | 4 | 1.41421 | 2 | 6 |")
}

func TestRenderCSV(t *testing.T) {
	out := RenderCSV([]ColumnStats{{Name: "A", Mean: 1, Std: 0.5, Min: 0, Max: 2}})
	assert.Equal(t, "column,mean,std,min,max\nA,1.000000,0.500000,0.000000,2.000000\n", out)
}

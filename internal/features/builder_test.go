package features

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-feature-lab/internal/domain"
	"market-feature-lab/internal/gbm"
)

func makeSeries(t *testing.T, ticker string, prices []float64, volume float64) *domain.RawSeries {
	t.Helper()
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	points := make([]domain.PricePoint, len(prices))
	for i, p := range prices {
		points[i] = domain.PricePoint{Date: start.AddDate(0, 0, i), AdjClose: p, Volume: volume}
	}
	s, err := domain.NewRawSeries(ticker, points)
	require.NoError(t, err)
	return s
}

func constantPrices(n int, price float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = price
	}
	return out
}

func smallHorizons() []Horizon {
	return []Horizon{
		{Name: "1D", Days: 1, Metrics: []domain.Metric{domain.MetricReturn, domain.MetricVolume}},
		{Name: "1W", Days: 5, Metrics: []domain.Metric{
			domain.MetricReturn, domain.MetricVolatility, domain.MetricVolume, domain.MetricSimulated,
		}},
	}
}

func newTestBuilder(t *testing.T, opts Options) *Builder {
	t.Helper()
	if opts.Projector == nil {
		opts.Projector = gbm.NewProjector(gbm.ProjectorOptions{Replicates: 20, Workers: 2, Seed: 1})
	}
	b, err := NewBuilder(opts)
	require.NoError(t, err)
	return b
}

func TestBuilder_ColumnsOrder(t *testing.T) {
	b := newTestBuilder(t, Options{Horizons: smallHorizons(), TargetDays: 3})

	assert.Equal(t, []string{
		"SPY_TARGET",
		"SPY_1D_RET", "SPY_1D_VOL",
		"SPY_1W_RET", "SPY_1W_STD", "SPY_1W_VOL", "SPY_1W_GBM",
	}, b.Columns("SPY"))
}

func TestBuilder_BuildMatchesColumns(t *testing.T) {
	b := newTestBuilder(t, Options{Horizons: smallHorizons(), TargetDays: 3})
	s := makeSeries(t, "SPY", []float64{100, 101, 99, 102, 104, 103, 105, 107, 106, 108}, 1000)

	frame, err := b.Build(context.Background(), s)
	require.NoError(t, err)

	require.Len(t, frame.Columns, len(b.Columns("SPY")))
	for i, name := range b.Columns("SPY") {
		assert.Equal(t, name, frame.Columns[i].Name)
		assert.Len(t, frame.Columns[i].Values, s.Len())
	}
}

func TestBuilder_ConstantSeries(t *testing.T) {
	b := newTestBuilder(t, Options{Horizons: smallHorizons(), TargetDays: 3})
	s := makeSeries(t, "QQQ", constantPrices(30, 50), 200)

	frame, err := b.Build(context.Background(), s)
	require.NoError(t, err)

	for _, name := range []string{"QQQ_1W_RET", "QQQ_1W_STD", "QQQ_1W_GBM"} {
		col := frame.Column(name)
		require.NotNil(t, col, name)
		assertNaNPrefix(t, col.Values, 5)
		for i := 5; i < len(col.Values); i++ {
			assert.Equal(t, 0.0, col.Values[i], "%s[%d]", name, i)
		}
	}

	vol := frame.Column("QQQ_1W_VOL")
	assertNaNPrefix(t, vol.Values, 4)
	for i := 4; i < len(vol.Values); i++ {
		assert.InDelta(t, 10000.0, vol.Values[i], 1e-9)
	}

	target := frame.Column("QQQ_TARGET")
	for i := 0; i < 27; i++ {
		assert.Equal(t, 0.0, target.Values[i])
	}
	for i := 27; i < 30; i++ {
		assert.True(t, math.IsNaN(target.Values[i]))
	}
}

func TestBuilder_ReturnConventions(t *testing.T) {
	prices := []float64{100, 110, 99, 120, 126, 130, 117}
	h := []Horizon{{Name: "2D", Days: 2, Metrics: []domain.Metric{domain.MetricReturn}}}

	mean := newTestBuilder(t, Options{Horizons: h, Convention: ReturnRollingMean, TargetDays: 1})
	pct := newTestBuilder(t, Options{Horizons: h, Convention: ReturnPctChange, TargetDays: 1})
	s := makeSeries(t, "XLE", prices, 1)

	fm, err := mean.Build(context.Background(), s)
	require.NoError(t, err)
	fp, err := pct.Build(context.Background(), s)
	require.NoError(t, err)

	// Rolling mean of the last two simple returns.
	r3 := (120.0 - 99) / 99
	r2 := (99.0 - 110) / 110
	assert.InDelta(t, (r2+r3)/2, fm.Column("XLE_2D_RET").Values[3], 1e-12)

	// Point-to-point change over two days.
	assert.InDelta(t, (120.0-110)/110, fp.Column("XLE_2D_RET").Values[3], 1e-12)
}

func TestBuilder_VolumeSum(t *testing.T) {
	h := []Horizon{{Name: "3D", Days: 3, Metrics: []domain.Metric{domain.MetricVolume}, VolumeAgg: VolumeSum}}
	b := newTestBuilder(t, Options{Horizons: h, TargetDays: 1})
	s := makeSeries(t, "XLP", []float64{10, 10, 10, 10}, 5)

	frame, err := b.Build(context.Background(), s)
	require.NoError(t, err)

	vol := frame.Column("XLP_3D_VOL").Values
	assert.InDelta(t, 150.0, vol[2], 1e-12)
	assert.InDelta(t, 150.0, vol[3], 1e-12)
}

type failingProjector struct{ err error }

func (f failingProjector) ExpectedReturns(_ context.Context, _ string, drift, _ []float64) ([]float64, error) {
	out := make([]float64, len(drift))
	for i := range out {
		out[i] = math.NaN()
	}
	return out, f.err
}

func TestBuilder_InvalidSimulationParamsYieldNaN(t *testing.T) {
	b := newTestBuilder(t, Options{
		Horizons:   smallHorizons(),
		TargetDays: 2,
		Projector:  failingProjector{err: domain.ErrInvalidParameters},
	})
	s := makeSeries(t, "IGE", constantPrices(12, 20), 1)

	frame, err := b.Build(context.Background(), s)
	require.NoError(t, err)

	for _, v := range frame.Column("IGE_1W_GBM").Values {
		assert.True(t, math.IsNaN(v))
	}
}

func TestBuilder_ProjectorErrorAborts(t *testing.T) {
	b := newTestBuilder(t, Options{
		Horizons:   smallHorizons(),
		TargetDays: 2,
		Projector:  failingProjector{err: context.Canceled},
	})
	s := makeSeries(t, "IGE", constantPrices(12, 20), 1)

	_, err := b.Build(context.Background(), s)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuilder_SimulatedColumnsIndependentAcrossInstruments(t *testing.T) {
	b := newTestBuilder(t, Options{Horizons: smallHorizons(), TargetDays: 2})
	prices := make([]float64, 20)
	for i := range prices {
		prices[i] = 100 + float64(i%4) - float64(i%3)
	}

	frames, err := b.BuildAll(context.Background(), []*domain.RawSeries{
		makeSeries(t, "IWM", prices, 1),
		makeSeries(t, "DIA", prices, 1),
	})
	require.NoError(t, err)

	iwm := frames[0].Column("IWM_1W_GBM").Values
	dia := frames[1].Column("DIA_1W_GBM").Values
	for i := 5; i < len(prices); i++ {
		assert.NotEqual(t, iwm[i], dia[i], "row %d", i)
	}
}

func TestBuilder_BuildAllPreservesOrder(t *testing.T) {
	b := newTestBuilder(t, Options{Horizons: smallHorizons(), TargetDays: 2, Workers: 3})
	var series []*domain.RawSeries
	for _, tk := range []string{"A", "B", "C", "D", "E"} {
		series = append(series, makeSeries(t, tk, constantPrices(15, 10), 1))
	}

	frames, err := b.BuildAll(context.Background(), series)
	require.NoError(t, err)
	require.Len(t, frames, 5)
	for i, f := range frames {
		assert.Equal(t, series[i].Ticker, f.ID)
	}
}

func TestNewBuilder_Validation(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"unknown convention", Options{Convention: "median"}},
		{"negative target", Options{TargetDays: -1}},
		{"zero days", Options{Horizons: []Horizon{{Name: "X", Days: 0, Metrics: []domain.Metric{domain.MetricReturn}}}}},
		{"unknown metric", Options{Horizons: []Horizon{{Name: "X", Days: 2, Metrics: []domain.Metric{"SKEW"}}}}},
		{"duplicate horizon", Options{Horizons: []Horizon{
			{Name: "X", Days: 2, Metrics: []domain.Metric{domain.MetricReturn}},
			{Name: "X", Days: 3, Metrics: []domain.Metric{domain.MetricReturn}},
		}}},
		{"simulation without projector", Options{Horizons: smallHorizons()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBuilder(tt.opts)
			assert.Error(t, err)
		})
	}
}

func TestWarmup(t *testing.T) {
	assert.Equal(t, 5, Warmup(smallHorizons()))
	assert.Equal(t, 252, Warmup(DefaultHorizons()))

	volOnly := []Horizon{{Name: "1M", Days: 21, Metrics: []domain.Metric{domain.MetricVolume}}}
	assert.Equal(t, 20, Warmup(volOnly))
}

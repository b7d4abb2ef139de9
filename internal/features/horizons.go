package features

import (
	"fmt"

	"market-feature-lab/internal/domain"
)

// ReturnConvention selects how multi-day return features are computed.
// One convention applies to every instrument in a run.
type ReturnConvention string

const (
	// ReturnRollingMean is the mean 1-day simple return over the window.
	ReturnRollingMean ReturnConvention = "rolling_mean"
	// ReturnPctChange is the point-to-point percent change over the horizon.
	ReturnPctChange ReturnConvention = "pct_change"
)

// VolumeAgg selects how dollar volume is aggregated over a window.
type VolumeAgg string

const (
	VolumeMean VolumeAgg = "mean"
	VolumeSum  VolumeAgg = "sum"
)

// DefaultTargetDays is the forward label horizon (one trading month).
const DefaultTargetDays = 21

// Horizon is one row of the horizon table: a named window length in
// trading days and the metrics computed over it.
type Horizon struct {
	Name      string
	Days      int
	Metrics   []domain.Metric
	VolumeAgg VolumeAgg
}

// Has reports whether the horizon requests metric m.
func (h Horizon) Has(m domain.Metric) bool {
	for _, hm := range h.Metrics {
		if hm == m {
			return true
		}
	}
	return false
}

// Validate checks the window length and metric list.
func (h Horizon) Validate() error {
	if h.Name == "" {
		return fmt.Errorf("horizon with %d days has no name", h.Days)
	}
	if h.Days < 1 {
		return fmt.Errorf("horizon %s: days must be >= 1, got %d", h.Name, h.Days)
	}
	if len(h.Metrics) == 0 {
		return fmt.Errorf("horizon %s: no metrics", h.Name)
	}
	for _, m := range h.Metrics {
		if !m.Valid() {
			return fmt.Errorf("horizon %s: unknown metric %q", h.Name, m)
		}
	}
	switch h.VolumeAgg {
	case "", VolumeMean, VolumeSum:
	default:
		return fmt.Errorf("horizon %s: unknown volume aggregation %q", h.Name, h.VolumeAgg)
	}
	return nil
}

// DefaultHorizons returns the standard table: 1D, 1W (10d), 1M (21d),
// 3M (63d), 6M (126d), 1Y (252d). Simulated returns are produced for the
// week through half-year horizons.
func DefaultHorizons() []Horizon {
	all := []domain.Metric{
		domain.MetricReturn, domain.MetricVolatility, domain.MetricVolume, domain.MetricSimulated,
	}
	noSim := []domain.Metric{domain.MetricReturn, domain.MetricVolatility, domain.MetricVolume}
	return []Horizon{
		{Name: "1D", Days: 1, Metrics: []domain.Metric{domain.MetricReturn, domain.MetricVolume}},
		{Name: "1W", Days: 10, Metrics: all},
		{Name: "1M", Days: 21, Metrics: all},
		{Name: "3M", Days: 63, Metrics: all},
		{Name: "6M", Days: 126, Metrics: all},
		{Name: "1Y", Days: 252, Metrics: noSim},
	}
}

// Warmup returns the number of leading rows that are NaN for at least
// one column produced by the table.
func Warmup(horizons []Horizon) int {
	warm := 0
	for _, h := range horizons {
		for _, m := range h.Metrics {
			n := h.Days // return-based windows start after the first NaN return
			if m == domain.MetricVolume {
				n = h.Days - 1
			}
			if n > warm {
				warm = n
			}
		}
	}
	return warm
}

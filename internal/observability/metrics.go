// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Fetch metrics
	FetchesTotal  *prometheus.CounterVec
	FetchLatency  *prometheus.HistogramVec
	PointsFetched *prometheus.CounterVec
	PointsStored  *prometheus.CounterVec

	// Feature metrics
	InstrumentsBuilt  prometheus.Counter
	PathsSimulated    prometheus.Counter
	SimulationsFailed prometheus.Counter

	// Panel metrics
	PanelRows    prometheus.Gauge
	PanelColumns prometheus.Gauge

	// Pipeline metrics
	PipelineRunsTotal *prometheus.CounterVec
	PipelineDuration  *prometheus.HistogramVec

	// Health metrics
	LastSuccessfulPipeline prometheus.Gauge
	LastSuccessfulIngest   prometheus.Gauge
}

// NewMetrics creates a Metrics instance registered with reg.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "market_feature_lab"
	}
	f := promauto.With(reg)

	return &Metrics{
		FetchesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "fetches_total",
			Help:      "Series fetches by kind and status",
		}, []string{"kind", "status"}),
		FetchLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "fetch_latency_seconds",
			Help:      "Series fetch latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		PointsFetched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "points_fetched_total",
			Help:      "Observations fetched by kind",
		}, []string{"kind"}),
		PointsStored: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "points_stored_total",
			Help:      "Observations archived by kind",
		}, []string{"kind"}),

		InstrumentsBuilt: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "features",
			Name:      "instruments_built_total",
			Help:      "Instruments whose feature frames were built",
		}),
		PathsSimulated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "features",
			Name:      "paths_simulated_total",
			Help:      "Monte-Carlo price paths simulated",
		}),
		SimulationsFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "features",
			Name:      "simulations_skipped_total",
			Help:      "Simulated-return columns left empty due to invalid parameters",
		}),

		PanelRows: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "panel",
			Name:      "rows",
			Help:      "Rows in the last assembled panel",
		}),
		PanelColumns: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "panel",
			Name:      "columns",
			Help:      "Columns in the last assembled panel",
		}),

		PipelineRunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Pipeline phase runs by status",
		}, []string{"phase", "status"}),
		PipelineDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Pipeline phase duration in seconds",
			Buckets:   []float64{0.1, 1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"phase"}),

		LastSuccessfulPipeline: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_pipeline_timestamp",
			Help:      "Unix timestamp of last successful pipeline run",
		}),
		LastSuccessfulIngest: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_ingest_timestamp",
			Help:      "Unix timestamp of last successful ingest run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer, "")

// RecordFetch records one series fetch of kind "price" or "indicator".
func RecordFetch(kind string, points int, seconds float64, err error) {
	status := "ok"
	if err != nil {
		status = "unavailable"
	}
	DefaultMetrics.FetchesTotal.WithLabelValues(kind, status).Inc()
	DefaultMetrics.FetchLatency.WithLabelValues(kind).Observe(seconds)
	if err == nil {
		DefaultMetrics.PointsFetched.WithLabelValues(kind).Add(float64(points))
	}
}

// RecordStored records archived observations.
func RecordStored(kind string, points int) {
	DefaultMetrics.PointsStored.WithLabelValues(kind).Add(float64(points))
}

// RecordInstrumentBuilt increments the instruments built counter.
func RecordInstrumentBuilt() {
	DefaultMetrics.InstrumentsBuilt.Inc()
}

// RecordPathsSimulated adds n simulated paths.
func RecordPathsSimulated(n int) {
	DefaultMetrics.PathsSimulated.Add(float64(n))
}

// RecordSimulationSkipped increments the skipped simulation counter.
func RecordSimulationSkipped() {
	DefaultMetrics.SimulationsFailed.Inc()
}

// RecordPanel sets the panel shape gauges.
func RecordPanel(rows, columns int) {
	DefaultMetrics.PanelRows.Set(float64(rows))
	DefaultMetrics.PanelColumns.Set(float64(columns))
}

// RecordPipelineRun records a pipeline phase run.
func RecordPipelineRun(phase, status string, durationSeconds float64) {
	DefaultMetrics.PipelineRunsTotal.WithLabelValues(phase, status).Inc()
	DefaultMetrics.PipelineDuration.WithLabelValues(phase).Observe(durationSeconds)
}

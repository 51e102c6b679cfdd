// Package metrics defines the Prometheus instrumentation for the
// pipeline and the HTTP API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline instruments ETL runs.
type Pipeline struct {
	StageDuration *prometheus.HistogramVec
	RowsProcessed *prometheus.CounterVec
	RowsDropped   *prometheus.CounterVec
	AlertsEmitted *prometheus.CounterVec
	Runs          *prometheus.CounterVec
	LastRunUnix   prometheus.Gauge
}

// NewPipeline registers the pipeline collectors on reg.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	factory := promauto.With(reg)
	return &Pipeline{
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "plantpulse",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Wall time spent per pipeline stage.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		RowsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plantpulse",
			Subsystem: "pipeline",
			Name:      "rows_processed_total",
			Help:      "Rows accepted into the silver layer per dataset.",
		}, []string{"dataset"}),
		RowsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plantpulse",
			Subsystem: "pipeline",
			Name:      "rows_dropped_total",
			Help:      "Rows dropped during normalization and validation.",
		}, []string{"dataset", "reason"}),
		AlertsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plantpulse",
			Subsystem: "alerting",
			Name:      "alerts_emitted_total",
			Help:      "Alerts that survived cooldown, per type and severity.",
		}, []string{"type", "severity"}),
		Runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plantpulse",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Pipeline runs per outcome.",
		}, []string{"outcome"}),
		LastRunUnix: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "plantpulse",
			Subsystem: "pipeline",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last successful pipeline run.",
		}),
	}
}

// HTTP instruments the API server.
type HTTP struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewHTTP registers the HTTP collectors on reg.
func NewHTTP(reg prometheus.Registerer) *HTTP {
	factory := promauto.With(reg)
	return &HTTP{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plantpulse",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests per route and status code.",
		}, []string{"route", "code"}),
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "plantpulse",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency per route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Package metrics holds the Prometheus collectors shared by ihttstats modules.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ihttstats"

// Metrics groups every collector the service exports.
type Metrics struct {
	registry *prometheus.Registry

	BackendRequests   *prometheus.CounterVec
	BackendDuration   *prometheus.HistogramVec
	Exports           *prometheus.CounterVec
	DuplicatesDropped *prometheus.CounterVec
	StaleResponses    *prometheus.CounterVec
	OpenViews         prometheus.Gauge
}

// New creates a Metrics instance backed by its own registry, so tests can
// build as many as they need without duplicate-registration panics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		BackendRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "requests_total",
			Help:      "Backend requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		BackendDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "request_duration_seconds",
			Help:      "Backend request latency by endpoint.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		Exports: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Generated export artifacts by resource, format and source.",
		}, []string{"resource", "format", "source"}),
		DuplicatesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "export_duplicates_dropped_total",
			Help:      "Records dropped by business-key de-duplication before export.",
		}, []string{"resource"}),
		StaleResponses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "listing",
			Name:      "stale_responses_total",
			Help:      "Backend pages discarded because a newer filter was submitted.",
		}, []string{"resource"}),
		OpenViews: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "listing",
			Name:      "open_views",
			Help:      "Detail views currently held in memory.",
		}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

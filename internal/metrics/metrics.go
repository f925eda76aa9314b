// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultBuckets are latency buckets in seconds for backend calls
var DefaultBuckets = []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

// Metrics groups the collectors. A zero Registry-less value is never used;
// construct with New.
type Metrics struct {
	registry *prometheus.Registry

	APIDuration *prometheus.HistogramVec
	Diagnoses   *prometheus.CounterVec
	Contacts    *prometheus.CounterVec
	Selections  *prometheus.CounterVec
	BackendUp   prometheus.Gauge
}

// New creates the collectors on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		APIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cropcure",
			Name:      "api_request_duration_seconds",
			Help:      "Duration of requests to the classification backend.",
			Buckets:   DefaultBuckets,
		}, []string{"operation", "outcome"}),
		Diagnoses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cropcure",
			Name:      "diagnoses_total",
			Help:      "Diagnosis attempts by outcome.",
		}, []string{"outcome"}),
		Contacts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cropcure",
			Name:      "contact_submissions_total",
			Help:      "Contact form submissions by status.",
		}, []string{"status"}),
		Selections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cropcure",
			Name:      "image_selections_total",
			Help:      "Image selections by source and result.",
		}, []string{"source", "result"}),
		BackendUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cropcure",
			Name:      "backend_up",
			Help:      "1 when the last backend health probe succeeded.",
		}),
	}

	m.registry.MustRegister(
		m.APIDuration,
		m.Diagnoses,
		m.Contacts,
		m.Selections,
		m.BackendUp,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveAPI records one backend call
func (m *Metrics) ObserveAPI(operation string, success bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.APIDuration.WithLabelValues(operation, outcome(success)).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// Package metrics defines the Prometheus metric collectors used by the
// highlighter and indexer and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	HighlightRequests    *prometheus.CounterVec
	HighlightLatency     prometheus.Histogram
	HitsHighlighted      prometheus.Counter
	FieldsHighlighted    *prometheus.CounterVec
	FieldFailures        *prometheus.CounterVec
	FragmentsPerField    prometheus.Histogram
	CacheHitsTotal       *prometheus.CounterVec
	CacheMissesTotal     prometheus.Counter
	DocsIndexedTotal     prometheus.Counter
	IndexEventsTotal     *prometheus.CounterVec
	AnalyticsDropped     prometheus.Counter
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates all collectors and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates all collectors and registers them with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		HighlightRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "highlight_requests_total",
				Help: "Total highlight requests by result (ok, partial, error).",
			},
			[]string{"result"},
		),
		HighlightLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "highlight_latency_seconds",
				Help:    "Highlight request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
		),
		HitsHighlighted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "highlight_hits_total",
				Help: "Total hits processed by the highlighter.",
			},
		),
		FieldsHighlighted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "highlight_fields_total",
				Help: "Fields highlighted by path (vector, plain).",
			},
			[]string{"path"},
		),
		FieldFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "highlight_field_failures_total",
				Help: "Fields skipped because highlighting failed, by error kind.",
			},
			[]string{"kind"},
		),
		FragmentsPerField: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "highlight_fragments_per_field",
				Help:    "Number of fragments returned per highlighted field.",
				Buckets: []float64{0, 1, 2, 3, 5, 10, 25},
			},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "field_query_cache_hits_total",
				Help: "Field-query cache hits by tier (local, redis).",
			},
			[]string{"tier"},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "field_query_cache_misses_total",
				Help: "Field-query cache misses.",
			},
		),
		DocsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docs_indexed_total",
				Help: "Total documents whose term vectors were stored.",
			},
		),
		IndexEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_events_total",
				Help: "Term-vector events consumed by status.",
			},
			[]string{"status"},
		),
		AnalyticsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "analytics_events_dropped_total",
				Help: "Hitword events dropped because the buffer was full.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.HighlightRequests,
		m.HighlightLatency,
		m.HitsHighlighted,
		m.FieldsHighlighted,
		m.FieldFailures,
		m.FragmentsPerField,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DocsIndexedTotal,
		m.IndexEventsTotal,
		m.AnalyticsDropped,
		m.CircuitBreakerState,
	)

	return m
}

// SetBreakerState records a circuit breaker transition. The numeric state
// follows resilience.State.
func (m *Metrics) SetBreakerState(name string, state int) {
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

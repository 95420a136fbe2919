// Package metrics exposes the core's Prometheus counters and histograms:
// HTTP request volume/latency plus the domain counters named in
// SPEC_FULL.md's metrics endpoint (reconcile attempts, CAS retries, engine
// errors by kind, event bus drops).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles every collector the daemon registers.
type Metrics struct {
	registry *prometheus.Registry

	inFlight prometheus.Gauge

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	reconcileAttempts *prometheus.CounterVec
	casRetries        prometheus.Counter
	engineErrors      *prometheus.CounterVec
	busDrops          *prometheus.CounterVec
}

// New creates a Metrics bundle registered against a fresh registry.
func New(namespace string) *Metrics {
	return NewWithRegistry(namespace, prometheus.NewRegistry())
}

// NewWithRegistry creates a Metrics bundle registered against reg, so tests
// can assert against an isolated registry instead of the global default.
func NewWithRegistry(namespace string, reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: reg,
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_in_flight_requests",
			Help:      "Number of HTTP requests currently being served.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by service, method, path and status.",
		}, []string{"service", "method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "method", "path"}),
		reconcileAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_attempts_total",
			Help:      "Object status reconcile attempts by object kind and outcome.",
		}, []string{"kind", "outcome"}),
		casRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_cas_retries_total",
			Help:      "Compare-and-swap retries on object status updates.",
		}),
		engineErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_errors_total",
			Help:      "Container engine adapter calls that returned an error, by kind.",
		}, []string{"kind"}),
		busDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_bus_dropped_total",
			Help:      "Events dropped because a subscriber's backlog was full.",
		}, []string{"subscriber"}),
	}

	reg.MustRegister(
		m.inFlight,
		m.httpRequests,
		m.httpDuration,
		m.reconcileAttempts,
		m.casRetries,
		m.engineErrors,
		m.busDrops,
	)

	return m
}

// Registry returns the prometheus.Registry backing m, for mounting /metrics.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) IncrementInFlight() { m.inFlight.Inc() }
func (m *Metrics) DecrementInFlight() { m.inFlight.Dec() }

// RecordHTTPRequest records one completed HTTP request.
func (m *Metrics) RecordHTTPRequest(service, method, path, status string, duration time.Duration) {
	m.httpRequests.WithLabelValues(service, method, path, status).Inc()
	m.httpDuration.WithLabelValues(service, method, path).Observe(duration.Seconds())
}

// RecordReconcile records one object status reconcile attempt.
func (m *Metrics) RecordReconcile(objectKind, outcome string) {
	m.reconcileAttempts.WithLabelValues(objectKind, outcome).Inc()
}

// RecordCASRetry records one status compare-and-swap retry.
func (m *Metrics) RecordCASRetry() {
	m.casRetries.Inc()
}

// RecordEngineError records one engine adapter call failing with the given
// error kind (not_found, conflict, transient, fatal).
func (m *Metrics) RecordEngineError(kind string) {
	m.engineErrors.WithLabelValues(kind).Inc()
}

// RecordBusDrop records one event dropped from a subscriber's backlog.
func (m *Metrics) RecordBusDrop(subscriber string) {
	m.busDrops.WithLabelValues(subscriber).Inc()
}

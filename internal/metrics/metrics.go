// Package metrics owns the Prometheus collectors exported by the board server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Transition sources recorded on the transitions counter.
const (
	SourceMove     = "move"
	SourceEdit     = "edit"
	SourceBulk     = "bulk"
	SourceReassign = "reassign"
)

// Metrics groups the board collectors around a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	transitions     *prometheus.CounterVec
	batches         *prometheus.CounterVec
	observed        *prometheus.CounterVec
	httpInFlight    prometheus.Gauge
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	rateLimitDenied prometheus.Counter
}

// New builds the collectors and registers them, together with the process
// and Go runtime collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "board",
				Subsystem: "workflow",
				Name:      "transitions_total",
				Help:      "Accepted stage transitions.",
			},
			[]string{"source"},
		),
		batches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "board",
				Subsystem: "workflow",
				Name:      "bulk_updates_total",
				Help:      "Bulk update requests by outcome.",
			},
			[]string{"outcome"},
		),
		observed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "board",
				Subsystem: "orders",
				Name:      "observed_total",
				Help:      "Order snapshots ingested, by result.",
			},
			[]string{"result"},
		),
		httpInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "board",
				Subsystem: "http",
				Name:      "inflight_requests",
				Help:      "Current number of in-flight HTTP requests.",
			},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "board",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests handled.",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "board",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
			},
			[]string{"method", "route"},
		),
		rateLimitDenied: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "board",
				Subsystem: "http",
				Name:      "rate_limited_total",
				Help:      "Mutating requests rejected by the per-user limiter.",
			},
		),
	}
	m.Registry.MustRegister(
		m.transitions,
		m.batches,
		m.observed,
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.rateLimitDenied,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return m
}

// Handler returns an HTTP handler exposing the registered metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// RecordTransition counts one accepted stage change.
func (m *Metrics) RecordTransition(source string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(source).Inc()
}

// RecordBatch counts one bulk update by outcome ("ok" or an error kind).
func (m *Metrics) RecordBatch(outcome string) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(outcome).Inc()
}

// RecordObserved counts ingested snapshots.
func (m *Metrics) RecordObserved(created, refreshed int) {
	if m == nil {
		return
	}
	m.observed.WithLabelValues("created").Add(float64(created))
	m.observed.WithLabelValues("refreshed").Add(float64(refreshed))
}

// RecordRateLimited counts one rejected request.
func (m *Metrics) RecordRateLimited() {
	if m == nil {
		return
	}
	m.rateLimitDenied.Inc()
}

// RecordRequest records a finished HTTP request.
func (m *Metrics) RecordRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// TrackInFlight increments the in-flight gauge and returns the matching
// decrement.
func (m *Metrics) TrackInFlight() func() {
	if m == nil {
		return func() {}
	}
	m.httpInFlight.Inc()
	return m.httpInFlight.Dec
}

// Package observability provides Prometheus metrics for the migration client.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "token_migration"

// Metrics holds all Prometheus metrics for the client.
type Metrics struct {
	// Cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	// Ledger metrics
	LedgerCalls   *prometheus.CounterVec
	LedgerLatency *prometheus.HistogramVec
	ThrottleWait  prometheus.Histogram

	// Builder metrics
	TransactionsBuilt *prometheus.CounterVec

	// Error metrics
	ErrorsNormalized *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance registered on reg. A nil reg leaves the
// collectors unregistered, which tests use to avoid global state.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	factory := promauto.With(reg)

	return &Metrics{
		CacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total number of cache hits by cache",
		}, []string{"cache"}),
		CacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total number of cache misses by cache",
		}, []string{"cache"}),

		LedgerCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "calls_total",
			Help:      "Total number of ledger RPC calls by method and outcome",
		}, []string{"method", "outcome"}),
		LedgerLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "call_duration_seconds",
			Help:      "Ledger RPC call latency in seconds",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method"}),
		ThrottleWait: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "throttle_wait_seconds",
			Help:      "Time spent waiting on the request throttle",
			Buckets:   []float64{.001, .01, .05, .1, .25, .5, 1},
		}),

		TransactionsBuilt: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "builder",
			Name:      "transactions_built_total",
			Help:      "Total number of unsigned transactions built by kind",
		}, []string{"kind"}),

		ErrorsNormalized: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "errors",
			Name:      "normalized_total",
			Help:      "Total number of errors returned to callers by code",
		}, []string{"code"}),
	}
}

// RecordCache records a cache lookup result.
func (m *Metrics) RecordCache(cache string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHits.WithLabelValues(cache).Inc()
		return
	}
	m.CacheMisses.WithLabelValues(cache).Inc()
}

// RecordLedgerCall records one ledger call and its latency.
func (m *Metrics) RecordLedgerCall(method string, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.LedgerCalls.WithLabelValues(method, outcome).Inc()
	m.LedgerLatency.WithLabelValues(method).Observe(time.Since(started).Seconds())
}

// RecordThrottleWait records time spent blocked on the throttle.
func (m *Metrics) RecordThrottleWait(d time.Duration) {
	if m == nil {
		return
	}
	m.ThrottleWait.Observe(d.Seconds())
}

// RecordTransaction records a built transaction.
func (m *Metrics) RecordTransaction(kind string) {
	if m == nil {
		return
	}
	m.TransactionsBuilt.WithLabelValues(kind).Inc()
}

// RecordError records an error returned to a caller.
func (m *Metrics) RecordError(code string) {
	if m == nil {
		return
	}
	m.ErrorsNormalized.WithLabelValues(code).Inc()
}

// Handler returns the Prometheus HTTP handler for gatherer. A nil gatherer serves
// the default registry.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

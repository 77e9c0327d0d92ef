// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kobo"

// Outcome labels shared by the counters below.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Registry owns a private Prometheus registry and the application collectors.
// A nil *Registry is valid and records nothing.
type Registry struct {
	reg *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	ledgerOps     *prometheus.CounterVec
	txRetries     prometheus.Counter
	notifications *prometheus.CounterVec
	signups       *prometheus.CounterVec
}

// New builds and registers every collector.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		}, []string{"method", "route"}),
		ledgerOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Funds movements by operation and outcome kind.",
		}, []string{"operation", "outcome"}),
		txRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "transaction_retries_total",
			Help:      "Transactions retried after a serialization failure or deadlock.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notification",
			Name:      "deliveries_total",
			Help:      "Outbound notification attempts by outcome.",
		}, []string{"outcome"}),
		signups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "onboarding",
			Name:      "signups_total",
			Help:      "Signup attempts by outcome kind.",
		}, []string{"outcome"}),
	}
	r.reg.MustRegister(
		r.httpRequests,
		r.httpDuration,
		r.ledgerOps,
		r.txRetries,
		r.notifications,
		r.signups,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return r
}

// Handler exposes the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry for tests.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// ObserveHTTP records one handled request.
func (r *Registry) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// LedgerOperation records a transfer, withdraw or deposit outcome.
func (r *Registry) LedgerOperation(op, outcome string) {
	if r == nil {
		return
	}
	r.ledgerOps.WithLabelValues(op, outcome).Inc()
}

// TxRetry counts one transaction retry.
func (r *Registry) TxRetry() {
	if r == nil {
		return
	}
	r.txRetries.Inc()
}

// Notification records a delivery attempt outcome.
func (r *Registry) Notification(outcome string) {
	if r == nil {
		return
	}
	r.notifications.WithLabelValues(outcome).Inc()
}

// NotificationCounter exposes the delivery counter for one outcome.
func (r *Registry) NotificationCounter(outcome string) prometheus.Counter {
	return r.notifications.WithLabelValues(outcome)
}

// Signup records a signup outcome.
func (r *Registry) Signup(outcome string) {
	if r == nil {
		return
	}
	r.signups.WithLabelValues(outcome).Inc()
}

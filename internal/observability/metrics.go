package observability

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns the process-local Prometheus registry and every metric the
// aggregate layer and the outbox relay report into.
type Metrics struct {
	registry *prometheus.Registry

	aggregateOps       *prometheus.HistogramVec
	aggregateConflicts *prometheus.CounterVec
	aggregateRetries   *prometheus.CounterVec

	relayDispatch     *prometheus.HistogramVec
	relayDelivered    *prometheus.CounterVec
	relayFailed       *prometheus.CounterVec
	relayDeadLettered *prometheus.CounterVec
	relayBatchSize    prometheus.Histogram
	outboxPending     prometheus.Gauge
}

// NewMetrics builds a Metrics instance on a private registry so tests can
// construct as many as they need without duplicate registration panics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		aggregateOps: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "commerce",
			Subsystem: "aggregate",
			Name:      "operation_duration_seconds",
			Help:      "Duration of aggregate write operations.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"op", "status"}),
		aggregateConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "commerce",
			Subsystem: "aggregate",
			Name:      "conflicts_total",
			Help:      "Optimistic concurrency conflicts per aggregate operation.",
		}, []string{"op"}),
		aggregateRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "commerce",
			Subsystem: "aggregate",
			Name:      "retryable_failures_total",
			Help:      "Transient infrastructure failures per aggregate operation.",
		}, []string{"op"}),
		relayDispatch: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "commerce",
			Subsystem: "outbox",
			Name:      "dispatch_duration_seconds",
			Help:      "Duration of outbox handler dispatch per event type.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"event_type", "status"}),
		relayDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "commerce",
			Subsystem: "outbox",
			Name:      "delivered_total",
			Help:      "Outbox records successfully delivered.",
		}, []string{"event_type"}),
		relayFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "commerce",
			Subsystem: "outbox",
			Name:      "failed_attempts_total",
			Help:      "Failed outbox delivery attempts.",
		}, []string{"event_type"}),
		relayDeadLettered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "commerce",
			Subsystem: "outbox",
			Name:      "dead_lettered_total",
			Help:      "Outbox records parked after exhausting delivery attempts.",
		}, []string{"event_type"}),
		relayBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "commerce",
			Subsystem: "outbox",
			Name:      "claim_batch_size",
			Help:      "Number of records claimed per relay poll.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
		}),
		outboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "commerce",
			Subsystem: "outbox",
			Name:      "pending_records",
			Help:      "Undelivered, non-dead-lettered outbox records.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.aggregateOps,
		m.aggregateConflicts,
		m.aggregateRetries,
		m.relayDispatch,
		m.relayDelivered,
		m.relayFailed,
		m.relayDeadLettered,
		m.relayBatchSize,
		m.outboxPending,
	)
	return m
}

// Handler exposes the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveAggregateOperation(op, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.aggregateOps.WithLabelValues(labelOr(op, "unknown"), labelOr(status, "unknown")).Observe(dur.Seconds())
}

func (m *Metrics) IncAggregateConflict(op string) {
	if m == nil {
		return
	}
	m.aggregateConflicts.WithLabelValues(labelOr(op, "unknown")).Inc()
}

func (m *Metrics) IncAggregateRetry(op string) {
	if m == nil {
		return
	}
	m.aggregateRetries.WithLabelValues(labelOr(op, "unknown")).Inc()
}

func (m *Metrics) ObserveRelayDispatch(eventType, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.relayDispatch.WithLabelValues(labelOr(eventType, "unknown"), labelOr(status, "unknown")).Observe(dur.Seconds())
}

func (m *Metrics) IncRelayDelivered(eventType string) {
	if m == nil {
		return
	}
	m.relayDelivered.WithLabelValues(labelOr(eventType, "unknown")).Inc()
}

func (m *Metrics) IncRelayFailed(eventType string) {
	if m == nil {
		return
	}
	m.relayFailed.WithLabelValues(labelOr(eventType, "unknown")).Inc()
}

func (m *Metrics) IncRelayDeadLettered(eventType string) {
	if m == nil {
		return
	}
	m.relayDeadLettered.WithLabelValues(labelOr(eventType, "unknown")).Inc()
}

func (m *Metrics) ObserveRelayBatch(n int) {
	if m == nil {
		return
	}
	m.relayBatchSize.Observe(float64(n))
}

func (m *Metrics) SetOutboxPending(n int64) {
	if m == nil {
		return
	}
	m.outboxPending.Set(float64(n))
}

func labelOr(v, fallback string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	return v
}

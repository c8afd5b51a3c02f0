package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics records placement outcomes and commit latency.
type OrderMetrics struct {
	duration  *prometheus.HistogramVec
	placed    *prometheus.CounterVec
	rejected  *prometheus.CounterVec
	conflicts prometheus.Counter
}

// NewOrderMetrics registers the order placement metrics on the provided registerer.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "order_commit_duration_seconds",
		Help:    "Duration of order placement transactions in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	placed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Successfully committed orders.",
	}, []string{"role"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_rejected_total",
		Help: "Order placements rejected before or during commit.",
	}, []string{"reason"})
	conflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "order_commit_conflicts_total",
		Help: "Transaction conflicts retried during order commit.",
	})
	reg.MustRegister(duration, placed, rejected, conflicts)
	return &OrderMetrics{
		duration:  duration,
		placed:    placed,
		rejected:  rejected,
		conflicts: conflicts,
	}
}

// ObserveCommitDuration records how long a placement attempt held the transaction.
func (m *OrderMetrics) ObserveCommitDuration(outcome string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(outcome)).Observe(duration.Seconds())
}

// IncPlaced increments the committed-order counter for the actor role.
func (m *OrderMetrics) IncPlaced(role string) {
	if m == nil || m.placed == nil {
		return
	}
	m.placed.WithLabelValues(normalizeLabel(role)).Inc()
}

// IncRejected increments the rejection counter for the named reason.
func (m *OrderMetrics) IncRejected(reason string) {
	if m == nil || m.rejected == nil {
		return
	}
	m.rejected.WithLabelValues(normalizeLabel(reason)).Inc()
}

// IncCommitConflict counts a serialization conflict that triggered a retry.
func (m *OrderMetrics) IncCommitConflict() {
	if m == nil || m.conflicts == nil {
		return
	}
	m.conflicts.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

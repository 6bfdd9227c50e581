package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the review queue.
type Metrics struct {
	Enqueued  *prometheus.CounterVec
	Claimed   prometheus.Counter
	Resolved  *prometheus.CounterVec
	Escalated prometheus.Counter
	Disputes  prometheus.Counter
}

// New creates a new Metrics instance with all review metrics registered.
func New() *Metrics {
	return &Metrics{
		Enqueued: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veridoc_review_enqueued_total",
			Help: "Assignments enqueued, by queue",
		}, []string{"queue"}),

		Claimed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veridoc_review_claimed_total",
			Help: "Assignments claimed by officers",
		}),

		Resolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veridoc_review_resolved_total",
			Help: "Assignments resolved, by decision",
		}, []string{"decision"}),

		Escalated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veridoc_review_escalated_total",
			Help: "SLA escalations to the senior queue",
		}),

		Disputes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veridoc_review_disputes_total",
			Help: "Citizen disputes opened",
		}),
	}
}

// IncrementEnqueued records a new assignment.
func (m *Metrics) IncrementEnqueued(queue string) {
	if m != nil {
		m.Enqueued.WithLabelValues(queue).Inc()
	}
}

// IncrementClaimed records an officer claim.
func (m *Metrics) IncrementClaimed() {
	if m != nil {
		m.Claimed.Inc()
	}
}

// IncrementResolved records a resolved assignment.
func (m *Metrics) IncrementResolved(decision string) {
	if m != nil {
		m.Resolved.WithLabelValues(decision).Inc()
	}
}

// IncrementEscalated records an SLA escalation.
func (m *Metrics) IncrementEscalated() {
	if m != nil {
		m.Escalated.Inc()
	}
}

// IncrementDisputes records an opened dispute.
func (m *Metrics) IncrementDisputes() {
	if m != nil {
		m.Disputes.Inc()
	}
}

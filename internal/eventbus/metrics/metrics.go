package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the event bus.
type Metrics struct {
	Published *prometheus.CounterVec
	Rejected  prometheus.Counter
	Forwarded prometheus.Counter
}

// New creates a new Metrics instance with all bus metrics registered.
func New() *Metrics {
	return &Metrics{
		Published: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veridoc_events_published_total",
			Help: "Total events accepted and appended to the log, by type",
		}, []string{"type"}),

		Rejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veridoc_events_rejected_total",
			Help: "Total events rejected at publish time by contract validation",
		}),

		Forwarded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veridoc_events_forwarded_total",
			Help: "Total events forwarded to the live transport",
		}),
	}
}

// IncrementPublished records an accepted event.
func (m *Metrics) IncrementPublished(eventType string) {
	if m != nil {
		m.Published.WithLabelValues(eventType).Inc()
	}
}

// IncrementRejected records a contract rejection.
func (m *Metrics) IncrementRejected() {
	if m != nil {
		m.Rejected.Inc()
	}
}

// IncrementForwarded records a transport hand-off.
func (m *Metrics) IncrementForwarded() {
	if m != nil {
		m.Forwarded.Inc()
	}
}

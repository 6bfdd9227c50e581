package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for offline reconciliation.
type Metrics struct {
	Ingested  prometheus.Counter
	Synced    prometheus.Counter
	Conflicts prometheus.Counter
	Overflows prometheus.Counter
	Backlog   *prometheus.GaugeVec
}

// New creates a new Metrics instance with all offline metrics registered.
func New() *Metrics {
	return &Metrics{
		Ingested: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veridoc_offline_ingested_total",
			Help: "Provisional records accepted into the reconciliation queue",
		}),

		Synced: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veridoc_offline_synced_total",
			Help: "Records reconciled against the central pipeline",
		}),

		Conflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veridoc_offline_conflicts_total",
			Help: "Reconciliations where the central result diverged",
		}),

		Overflows: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veridoc_offline_overflows_total",
			Help: "Records deferred past the sync capacity window",
		}),

		Backlog: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "veridoc_offline_backlog",
			Help: "Unsynced records per tenant",
		}, []string{"tenant"}),
	}
}

// IncrementIngested records an accepted provisional record.
func (m *Metrics) IncrementIngested() {
	if m != nil {
		m.Ingested.Inc()
	}
}

// IncrementSynced records a successful reconciliation.
func (m *Metrics) IncrementSynced() {
	if m != nil {
		m.Synced.Inc()
	}
}

// IncrementConflicts records a divergent reconciliation.
func (m *Metrics) IncrementConflicts() {
	if m != nil {
		m.Conflicts.Inc()
	}
}

// IncrementOverflows records a record deferred by backpressure.
func (m *Metrics) IncrementOverflows() {
	if m != nil {
		m.Overflows.Inc()
	}
}

// SetBacklog records the current backlog size for a tenant.
func (m *Metrics) SetBacklog(tenant string, size int) {
	if m != nil {
		m.Backlog.WithLabelValues(tenant).Set(float64(size))
	}
}

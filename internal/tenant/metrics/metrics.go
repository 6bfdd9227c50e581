package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for tenant policy resolution. Resolve sits
// on the hot path of every pipeline run, so cache effectiveness matters.
type Metrics struct {
	PolicyUpdates prometheus.Counter
	CacheHits     prometheus.Counter
	CacheMisses   prometheus.Counter
}

// New creates and registers all tenant metrics.
func New() *Metrics {
	return &Metrics{
		PolicyUpdates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veridoc_tenant_policy_updates_total",
			Help: "Tenant policy versions written",
		}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veridoc_tenant_policy_cache_hits_total",
			Help: "Policy resolutions served from cache",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veridoc_tenant_policy_cache_misses_total",
			Help: "Policy resolutions that fell through to the store",
		}),
	}
}

// IncrementPolicyUpdates records one stored policy version.
func (m *Metrics) IncrementPolicyUpdates() {
	if m != nil {
		m.PolicyUpdates.Inc()
	}
}

// IncrementCacheHits records one cache-served resolution.
func (m *Metrics) IncrementCacheHits() {
	if m != nil {
		m.CacheHits.Inc()
	}
}

// IncrementCacheMisses records one store-served resolution.
func (m *Metrics) IncrementCacheMisses() {
	if m != nil {
		m.CacheMisses.Inc()
	}
}

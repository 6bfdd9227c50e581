package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the transport-level Prometheus metrics. Domain packages carry
// their own metrics subpackages.
type Metrics struct {
	HTTPRequests *prometheus.CounterVec
	Submissions  prometheus.Counter
}

// New creates and registers all transport metrics.
func New() *Metrics {
	return &Metrics{
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veridoc_http_requests_total",
			Help: "HTTP requests by route and status",
		}, []string{"route", "status"}),

		Submissions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veridoc_submissions_total",
			Help: "Documents accepted for verification",
		}),
	}
}

// IncrementHTTPRequest records one handled request.
func (m *Metrics) IncrementHTTPRequest(route, status string) {
	if m != nil {
		m.HTTPRequests.WithLabelValues(route, status).Inc()
	}
}

// IncrementSubmissions records one accepted submission.
func (m *Metrics) IncrementSubmissions() {
	if m != nil {
		m.Submissions.Inc()
	}
}

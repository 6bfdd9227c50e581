package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for pipeline executions.
type Metrics struct {
	StageDuration *prometheus.HistogramVec
	StageFailures *prometheus.CounterVec
	Decisions     *prometheus.CounterVec
	JobsFailed    prometheus.Counter
}

// New creates a new Metrics instance with all pipeline metrics registered.
func New() *Metrics {
	return &Metrics{
		StageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "veridoc_pipeline_stage_duration_seconds",
			Help:    "Wall time per pipeline stage",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"stage"}),

		StageFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veridoc_pipeline_stage_failures_total",
			Help: "Stage failures including timeouts, by stage",
		}, []string{"stage"}),

		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veridoc_pipeline_decisions_total",
			Help: "Decision stage outcomes",
		}, []string{"decision"}),

		JobsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veridoc_pipeline_jobs_failed_total",
			Help: "Jobs driven to FAILED by an unrecoverable pipeline fault",
		}),
	}
}

// ObserveStage records one stage execution.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m != nil {
		m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
	}
}

// IncrementStageFailure records a stage failure or timeout.
func (m *Metrics) IncrementStageFailure(stage string) {
	if m != nil {
		m.StageFailures.WithLabelValues(stage).Inc()
	}
}

// IncrementDecision records a decision outcome.
func (m *Metrics) IncrementDecision(decision string) {
	if m != nil {
		m.Decisions.WithLabelValues(decision).Inc()
	}
}

// IncrementJobFailed records a job-level failure.
func (m *Metrics) IncrementJobFailed() {
	if m != nil {
		m.JobsFailed.Inc()
	}
}

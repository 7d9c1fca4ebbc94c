package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Module provides engine metrics on the default registerer.
var Module = fx.Provide(func() *Metrics {
	return New(prometheus.DefaultRegisterer)
})

// Metrics counts engine activity for operational dashboards.
type Metrics struct {
	transitions        *prometheus.CounterVec
	reconciliationRuns *prometheus.CounterVec
	jobDuration        *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taxtrail",
			Subsystem: "filing",
			Name:      "transitions_total",
			Help:      "Filing transition attempts by step type and outcome.",
		}, []string{"step_type", "outcome"}),
		reconciliationRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taxtrail",
			Subsystem: "reconciliation",
			Name:      "runs_total",
			Help:      "Reconciliation operations by kind and outcome.",
		}, []string{"operation", "outcome"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "taxtrail",
			Subsystem: "scheduler",
			Name:      "job_duration_seconds",
			Help:      "Scheduler job wall time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job"}),
	}
	if reg != nil {
		reg.MustRegister(m.transitions, m.reconciliationRuns, m.jobDuration)
	}
	return m
}

func (m *Metrics) IncTransition(stepType, outcome string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(stepType, outcome).Inc()
}

func (m *Metrics) IncReconciliation(operation, outcome string) {
	if m == nil {
		return
	}
	m.reconciliationRuns.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) ObserveJobDuration(job string, d time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

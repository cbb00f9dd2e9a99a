// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	QuoteCalculations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quote_calculations_total",
			Help: "Total number of quote calculations by condensation risk level",
		},
		[]string{"risk_level"},
	)

	AssignmentsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "installer_assignments_created_total",
			Help: "Total number of installer assignments created",
		},
		[]string{"lead"},
	)

	ConfirmationOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assignment_confirmation_outcomes_total",
			Help: "Total assignment confirmations by outcome (accepted, declined, expired)",
		},
		[]string{"outcome"},
	)

	NotificationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_failures_total",
			Help: "Total notification delivery failures by channel",
		},
		[]string{"channel"},
	)
)

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

	// kind is one of csr, wss, psr_details, tips.
	RatingComputations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rating_computations_total",
			Help: "Total number of rating computations by kind",
		},
		[]string{"kind"},
	)

	RatingComputationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rating_computation_duration_seconds",
			Help:    "Snapshot read plus computation time in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	HistoryEntriesAppended = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csr_history_entries_total",
			Help: "Total number of CSR history entries appended",
		},
		[]string{"category"},
	)

	HistoryDuplicatesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csr_history_duplicates_total",
			Help: "History appends skipped as duplicates",
		},
		[]string{"reason"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests served by the rating API",
		},
		[]string{"route", "status"},
	)
)

package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for job queue operations.
var (
	// JobsEnqueued counts jobs added per category.
	JobsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ordersync_jobs_enqueued_total",
		Help: "Total jobs enqueued by category",
	}, []string{"category"})

	// JobsCompleted counts finished jobs per category and outcome.
	JobsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ordersync_jobs_completed_total",
		Help: "Total jobs finished by category and outcome",
	}, []string{"category", "outcome"})

	// JobDuration tracks time from claim to completion per category.
	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ordersync_job_duration_seconds",
		Help:    "Job duration from claim to completion by category",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
	}, []string{"category"})

	// JobsWaiting gauges the queue depth per category. QueueStats is its
	// only writer, so the gauge stays correct when several processes
	// share the queue.
	JobsWaiting = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ordersync_jobs_waiting",
		Help: "Jobs currently waiting by category",
	}, []string{"category"})
)

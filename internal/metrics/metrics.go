package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TasksCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "media_queue_tasks_created_total",
		Help: "Total number of tasks created",
	})

	TasksCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "media_queue_tasks_completed_total",
		Help: "Total number of tasks completed",
	})

	TasksFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "media_queue_tasks_failed_total",
		Help: "Total number of tasks that ended in error",
	})

	TasksReaped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "media_queue_tasks_reaped_total",
		Help: "Total number of stale processing tasks terminated by the reaper",
	})

	TasksExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "media_queue_tasks_expired_total",
		Help: "Total number of terminal tasks removed by retention expiry",
	})

	AdmissionDenied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "media_queue_admission_denied_total",
		Help: "Total number of tasks denied by the quota admission check",
	})

	WebhooksDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "media_queue_webhooks_delivered_total",
		Help: "Total number of webhook notifications delivered",
	})

	WebhooksFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "media_queue_webhooks_failed_total",
		Help: "Total number of webhook notifications that exhausted their retry budget",
	})

	OrphansRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "media_queue_orphans_removed_total",
		Help: "Total number of orphaned artifact namespaces removed",
	})

	HandlerDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "media_queue_handler_duration_seconds",
		Help:    "Handler execution duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	ArtifactBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "media_queue_artifact_bytes_total",
		Help: "Total bytes written to artifact storage",
	})
)

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsEnqueued tracks units of work handed to the delayed job broker
	JobsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_engine_jobs_enqueued_total",
			Help: "Total number of delayed jobs enqueued",
		},
		[]string{"queue"},
	)

	// JobsFired tracks executed jobs by outcome
	JobsFired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_engine_jobs_fired_total",
			Help: "Total number of delayed jobs executed",
		},
		[]string{"queue", "status"},
	)

	// JobRetries tracks worker execution retries
	JobRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_engine_job_retries_total",
			Help: "Total number of job execution retries",
		},
		[]string{"queue"},
	)

	// QueueDepth tracks pending delayed jobs per queue
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reminder_engine_queue_depth",
			Help: "Current number of pending delayed jobs",
		},
		[]string{"queue"},
	)

	// RemindersScheduled tracks materialized reminder records
	RemindersScheduled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_engine_reminders_scheduled_total",
			Help: "Total number of reminders materialized",
		},
		[]string{"kind"},
	)

	// SchedulingImpossible tracks schedules that yielded no future instant
	SchedulingImpossible = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_engine_scheduling_impossible_total",
			Help: "Total number of schedules with no valid future occurrence",
		},
		[]string{"kind"},
	)

	// DeliveryDuration tracks outbound gateway latency
	DeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reminder_engine_delivery_duration_seconds",
			Help:    "Notification delivery duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel"},
	)

	// DeliveryFailures tracks failed gateway sends
	DeliveryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_engine_delivery_failures_total",
			Help: "Total number of failed notification deliveries",
		},
		[]string{"channel", "reason"},
	)

	// StoreRetries tracks transparent store operation retries
	StoreRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_engine_store_retries_total",
			Help: "Total number of retried store operations",
		},
		[]string{"operation"},
	)

	// StoreReconnects tracks connection pool recreations
	StoreReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reminder_engine_store_reconnects_total",
			Help: "Total number of store reconnections",
		},
	)
)

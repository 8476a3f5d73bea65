// Package metrics счётчики Prometheus, отдаваемые на /metrics
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "timetutor"

var (
	PurgeRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "purge_runs_total",
		Help:      "Expired notification purge runs by trigger and outcome.",
	}, []string{"trigger", "outcome"})

	PurgeDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "purge_deleted_total",
		Help:      "Expired notifications deleted.",
	})

	PurgeBatches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "purge_batches_total",
		Help:      "Committed purge delete batches.",
	})

	PurgeLimitReached = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "purge_limit_reached_total",
		Help:      "Purge runs that stopped at the batch ceiling.",
	})

	LessonsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lessons_created_total",
		Help:      "Lesson instances persisted.",
	})

	LessonCreateFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lesson_create_failures_total",
		Help:      "Lesson instances that failed to persist.",
	})

	InvoicesGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invoices_generated_total",
		Help:      "Invoices committed.",
	})

	InvoiceRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invoice_rejections_total",
		Help:      "Invoice generations rejected, by error kind.",
	}, []string{"kind"})

	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_sent_total",
		Help:      "Notifications delivered, by channel.",
	}, []string{"channel"})

	NotificationsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_failed_total",
		Help:      "Notification deliveries that failed, by channel.",
	}, []string{"channel"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route pattern and status code.",
	}, []string{"method", "route", "status"})
)

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	// lifecycle engine
	TransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escrow_transitions_total",
			Help: "Applied lifecycle transitions",
		},
		[]string{"command"},
	)
	TransitionsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escrow_transitions_rejected_total",
			Help: "Commands rejected by authorization or legality checks",
		},
		[]string{"reason"}, // forbidden|invalid_transition|validation
	)
	PaymentOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escrow_payment_outcomes_total",
			Help: "Settled payment attempts by outcome",
		},
		[]string{"outcome"}, // success|failure
	)
	NotificationsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "escrow_notifications_sent_total",
			Help: "Notifications written to recipient inboxes",
		},
	)
	NotificationsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "escrow_notifications_dropped_total",
			Help: "Notification deliveries that failed after retries",
		},
	)

	// worker queue
	WorkerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Current worker queue depth",
		},
	)
)

// Handler serves /metrics.
var Handler = promhttp.Handler

func Init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(TransitionsTotal)
	prometheus.MustRegister(TransitionsRejected)
	prometheus.MustRegister(PaymentOutcomes)
	prometheus.MustRegister(NotificationsSent)
	prometheus.MustRegister(NotificationsDropped)
	prometheus.MustRegister(WorkerQueueDepth)
}

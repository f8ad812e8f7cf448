package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "venuebook"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	bookingDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_decisions_total",
			Help:      "Booking requests by mode and outcome (created, existing, conflict, rejected).",
		},
		[]string{"mode", "outcome"},
	)

	bookingDecisionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "booking_decision_duration_seconds",
			Help:      "Time spent inside the booking transaction.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	auditTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_status_transitions_total",
			Help:      "Booking status changes by target status.",
		},
		[]string{"status"},
	)

	outboxDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_deliveries_total",
			Help:      "Outbox relay results by status (completed, retry, failed).",
		},
		[]string{"status"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, bookingDecisions, bookingDecisionDuration, auditTransitions, outboxDeliveries)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func ObserveBookingDecision(mode, outcome string, took time.Duration) {
	bookingDecisions.WithLabelValues(mode, outcome).Inc()
	bookingDecisionDuration.WithLabelValues(mode).Observe(took.Seconds())
}

func IncStatusTransition(status string) {
	auditTransitions.WithLabelValues(status).Inc()
}

func IncOutbox(status string) {
	outboxDeliveries.WithLabelValues(status).Inc()
}

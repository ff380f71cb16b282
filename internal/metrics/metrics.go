package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rezervacia"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status class.",
		},
		[]string{"route", "code"},
	)

	wizardTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wizard_transitions_total",
			Help:      "Wizard state changes by resulting step.",
		},
		[]string{"step"},
	)

	bookingsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_created_total",
			Help:      "Bookings created through the wizard by service.",
		},
		[]string{"service_id", "channel"},
	)

	submissionsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_submissions_failed_total",
			Help:      "Booking submissions rejected by the sink.",
		},
	)

	staleSlotResponses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_slot_responses_total",
			Help:      "Slot responses dropped because a newer request was issued.",
		},
	)

	slotFetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "slot_fetch_duration_seconds",
			Help:      "Time spent fetching slot availability.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			wizardTransitions,
			bookingsCreated,
			submissionsFailed,
			staleSlotResponses,
			slotFetchDuration,
		)
	})
}

// IncHTTP increments the request counter for a route template.
func IncHTTP(route string, status int) {
	httpRequests.WithLabelValues(route, statusClass(status)).Inc()
}

func IncTransition(step string) {
	wizardTransitions.WithLabelValues(step).Inc()
}

func IncBookingCreated(serviceID, channel string) {
	bookingsCreated.WithLabelValues(serviceID, channel).Inc()
}

func IncSubmissionFailed() {
	submissionsFailed.Inc()
}

func IncStaleSlots() {
	staleSlotResponses.Inc()
}

func ObserveSlotFetch(d time.Duration) {
	slotFetchDuration.Observe(d.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

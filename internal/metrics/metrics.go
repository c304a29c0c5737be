// Package metrics holds the Prometheus instruments of the tracker.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_cycles_total",
			Help: "Reconciliation cycles by outcome (completed, skipped)",
		},
		[]string{"outcome"},
	)

	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tracker_cycle_duration_seconds",
			Help:    "Duration of completed reconciliation cycles",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	SubscriptionsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_subscriptions_failed_total",
			Help: "Subscriptions that ended a cycle in the failed state, by step",
		},
		[]string{"step"},
	)

	SamplesRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tracker_samples_recorded_total",
			Help: "Metric samples appended to the history",
		},
	)

	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "youtube_fetches_total",
			Help: "Metrics source calls by result (ok, not_found, unavailable)",
		},
		[]string{"result"},
	)

	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "youtube_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Notification attempts by channel and result",
		},
		[]string{"channel", "result"},
	)
)

// ObserveCycle records a completed cycle.
func ObserveCycle(d time.Duration) {
	CyclesTotal.WithLabelValues("completed").Inc()
	CycleDuration.Observe(d.Seconds())
}

// RecordNotification counts one dispatch attempt.
func RecordNotification(channel string, ok bool) {
	result := "sent"
	if !ok {
		result = "failed"
	}
	NotificationsTotal.WithLabelValues(channel, result).Inc()
}

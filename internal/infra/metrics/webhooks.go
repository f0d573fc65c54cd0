package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		webhookEventsTotal,
		webhookDuration,
	)
}

var (
	// outcome: processed|duplicate|ignored|terminal|invalid_signature|not_found|error|unsupported
	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Provider webhook deliveries by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)

	webhookDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webhook_duration_seconds",
			Help:    "Duration of webhook reconciliation in seconds.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"provider"},
	)
)

func IncWebhook(provider, outcome string) {
	if provider == "" {
		provider = "unknown"
	}
	webhookEventsTotal.WithLabelValues(norm(provider), norm(outcome)).Inc()
}

func ObserveWebhook(provider string, elapsed time.Duration) {
	if provider == "" {
		provider = "unknown"
	}
	webhookDuration.WithLabelValues(norm(provider)).Observe(elapsed.Seconds())
}

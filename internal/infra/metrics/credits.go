package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(creditsGrantedTotal, creditsConsumedTotal) }

var (
	creditsGrantedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credits_granted_total",
			Help: "Credits added to user balances, by ledger type.",
		},
		[]string{"type"},
	)

	creditsConsumedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "credits_consumed_total",
			Help: "Credits debited from user balances.",
		},
	)
)

func AddCreditsGranted(txType string, n int64) {
	creditsGrantedTotal.WithLabelValues(norm(txType)).Add(float64(n))
}

func AddCreditsConsumed(n int64) {
	creditsConsumedTotal.Add(float64(n))
}

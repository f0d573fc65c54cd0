package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(ordersExpiredTotal, sweepRunsTotal) }

var (
	ordersExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_expired_total",
			Help: "Total number of pending orders moved to expired by the sweep.",
		},
	)

	sweepRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_sweep_runs_total",
			Help: "Expiry sweep runs by result.",
		},
		[]string{"result"}, // 'ok', 'error', 'locked'
	)
)

func AddOrdersExpired(n int) {
	if n > 0 {
		ordersExpiredTotal.Add(float64(n))
	}
}

func IncSweepRun(result string) {
	sweepRunsTotal.WithLabelValues(norm(result)).Inc()
}

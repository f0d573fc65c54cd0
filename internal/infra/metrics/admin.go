package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(paymentConfigChangesTotal, adminRequestTotal) }

var (
	paymentConfigChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_config_changes_total",
			Help: "Payment config versions appended, by admin action.",
		},
		[]string{"action"},
	)

	adminRequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_request_total",
			Help: "Tracks attempts to use admin endpoints.",
		},
		[]string{"endpoint", "status"}, // status: 'authorized', 'unauthorized', 'forbidden'
	)
)

func IncPaymentConfigChange(action string) {
	paymentConfigChangesTotal.WithLabelValues(norm(action)).Inc()
}

func IncAdminRequest(endpoint, status string) {
	adminRequestTotal.WithLabelValues(norm(endpoint), norm(status)).Inc()
}

//go:build !integration

package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterWith(t *testing.T) {
	t.Run("should register every collector once per registry", func(t *testing.T) {
		reg := prometheus.NewRegistry()

		require.NoError(t, RegisterWith(reg))

		err := RegisterWith(reg)
		var already prometheus.AlreadyRegisteredError
		assert.True(t, errors.As(err, &already), "second registration should collide, got %v", err)
	})
}

func TestCounters(t *testing.T) {
	t.Run("should normalise label values", func(t *testing.T) {
		before := testutil.ToFloat64(creditsGrantedTotal.WithLabelValues("purchase"))

		AddCreditsGranted(" Purchase ", 1000)

		assert.Equal(t, before+1000, testutil.ToFloat64(creditsGrantedTotal.WithLabelValues("purchase")))
	})

	t.Run("should label checkouts without a provider as none", func(t *testing.T) {
		before := testutil.ToFloat64(checkoutsTotal.WithLabelValues("none", "rejected"))

		IncCheckout("", "rejected")

		assert.Equal(t, before+1, testutil.ToFloat64(checkoutsTotal.WithLabelValues("none", "rejected")))
	})

	t.Run("should ignore empty sweeps", func(t *testing.T) {
		before := testutil.ToFloat64(ordersExpiredTotal)

		AddOrdersExpired(0)
		AddOrdersExpired(3)

		assert.Equal(t, before+3, testutil.ToFloat64(ordersExpiredTotal))
	})

	t.Run("should split invalidation outcomes", func(t *testing.T) {
		okBefore := testutil.ToFloat64(cacheInvalidations.WithLabelValues("payment_config", "ok"))
		failedBefore := testutil.ToFloat64(cacheInvalidations.WithLabelValues("payment_config", "failed"))

		IncCacheInvalidation("payment_config", nil)
		IncCacheInvalidation("payment_config", errors.New("redis down"))

		assert.Equal(t, okBefore+1, testutil.ToFloat64(cacheInvalidations.WithLabelValues("payment_config", "ok")))
		assert.Equal(t, failedBefore+1, testutil.ToFloat64(cacheInvalidations.WithLabelValues("payment_config", "failed")))
	})
}

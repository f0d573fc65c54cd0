package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(cacheLookups, cacheInvalidations) }

// Cache lookup results.
const (
	CacheHit     = "hit"
	CacheMiss    = "miss"
	CacheCorrupt = "corrupt" // entry present but not decodable
	CacheError   = "error"   // redis unavailable; served from the database
)

var (
	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_cache_lookups_total",
			Help: "Redis cache lookups by cache and result.",
		},
		[]string{"cache", "result"},
	)

	cacheInvalidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_cache_invalidations_total",
			Help: "Explicit cache invalidations after writes, by cache and outcome.",
		},
		[]string{"cache", "outcome"}, // ok | failed
	)
)

func IncCacheRequest(cacheName, result string) {
	cacheLookups.WithLabelValues(norm(cacheName), norm(result)).Inc()
}

func IncCacheInvalidation(cacheName string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	cacheInvalidations.WithLabelValues(norm(cacheName), outcome).Inc()
}

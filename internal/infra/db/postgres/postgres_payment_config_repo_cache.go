package postgres

import (
	"context"
	"encoding/json"
	"time"

	"ai-image-billing/internal/domain/model"
	"ai-image-billing/internal/domain/ports/repository"
	"ai-image-billing/internal/infra/metrics"
	red "ai-image-billing/internal/infra/redis"

	"github.com/rs/zerolog"
)

var _ repository.PaymentConfigRepository = (*paymentConfigRepoCacheDecorator)(nil)

const (
	paymentConfigCacheName = "payment_config"
	paymentConfigCacheKey  = "payment_config:latest"
	paymentConfigCacheTTL  = 5 * time.Minute
)

// paymentConfigRepoCacheDecorator caches the latest version. Every checkout
// reads it, admins rarely write it.
type paymentConfigRepoCacheDecorator struct {
	inner repository.PaymentConfigRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewPaymentConfigRepoCacheDecorator(inner repository.PaymentConfigRepository, cache red.RedisClient, logger *zerolog.Logger) repository.PaymentConfigRepository {
	return &paymentConfigRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   paymentConfigCacheTTL,
		log:   logger,
	}
}

func (d *paymentConfigRepoCacheDecorator) Latest(ctx context.Context, tx repository.Tx) (*model.PaymentConfig, error) {
	// Reads inside a transaction go straight to the database.
	if tx != repository.NoTX {
		return d.inner.Latest(ctx, tx)
	}

	val, err := d.cache.Get(ctx, paymentConfigCacheKey)
	switch {
	case err == nil:
		var c model.PaymentConfig
		if json.Unmarshal([]byte(val), &c) == nil {
			metrics.IncCacheRequest(paymentConfigCacheName, metrics.CacheHit)
			return &c, nil
		}
		metrics.IncCacheRequest(paymentConfigCacheName, metrics.CacheCorrupt)
	case red.IsNil(err):
		metrics.IncCacheRequest(paymentConfigCacheName, metrics.CacheMiss)
	default:
		metrics.IncCacheRequest(paymentConfigCacheName, metrics.CacheError)
		d.log.Warn().Err(err).Str("key", paymentConfigCacheKey).Msg("cache read failed")
	}

	c, err := d.inner.Latest(ctx, tx)
	if err != nil {
		return nil, err
	}
	if c != nil {
		if b, merr := json.Marshal(c); merr == nil {
			_ = d.cache.Set(ctx, paymentConfigCacheKey, b, d.ttl)
		}
	}
	return c, nil
}

// Append invalidates after the write so readers never cache a stale version
// fetched between the delete and the insert.
func (d *paymentConfigRepoCacheDecorator) Append(ctx context.Context, tx repository.Tx, c *model.PaymentConfig) error {
	if err := d.inner.Append(ctx, tx, c); err != nil {
		return err
	}
	err := d.cache.Del(ctx, paymentConfigCacheKey)
	metrics.IncCacheInvalidation(paymentConfigCacheName, err)
	if err != nil {
		d.log.Warn().Err(err).Str("key", paymentConfigCacheKey).Msg("cache invalidation failed")
	}
	return nil
}

func (d *paymentConfigRepoCacheDecorator) History(ctx context.Context, tx repository.Tx, limit int) ([]*model.PaymentConfig, error) {
	return d.inner.History(ctx, tx, limit)
}

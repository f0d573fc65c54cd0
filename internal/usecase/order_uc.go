// File: internal/usecase/order_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"ai-image-billing/internal/domain"
	"ai-image-billing/internal/domain/model"
	"ai-image-billing/internal/domain/ports/repository"
	ucport "ai-image-billing/internal/domain/ports/usecase"
	derror "ai-image-billing/internal/error"
	"ai-image-billing/internal/infra/logging"
	"ai-image-billing/internal/infra/metrics"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

// Compile-time checks
var (
	_ OrderUseCase        = (*orderUC)(nil)
	_ ucport.OrderSweeper = (*orderUC)(nil)
)

const sweepLockKey = "lock:orders:expire"

// Locker guards work that must not overlap across instances.
type Locker interface {
	// TryLock returns domain.ErrLockHeld when another owner holds key.
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

type OrderUseCase interface {
	// Get returns an order owned by userID; other users' orders are reported as not found.
	Get(ctx context.Context, userID, orderID string) (*model.Order, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*model.Order, error)
	Stats(ctx context.Context) (*model.OrderStats, error)
	ExpireOverdue(ctx context.Context, now time.Time) (*ucport.SweepReport, error)
}

type orderUC struct {
	orders    repository.OrderRepository
	locker    Locker
	batchSize int
	lockTTL   time.Duration
	log       *zerolog.Logger
}

func NewOrderUseCase(orders repository.OrderRepository, locker Locker, batchSize int, lockTTL time.Duration, logger *zerolog.Logger) *orderUC {
	l := logger.With().Str("component", "OrderUC").Logger()
	if batchSize <= 0 {
		batchSize = 500
	}
	if lockTTL <= 0 {
		lockTTL = 5 * time.Minute
	}
	return &orderUC{orders: orders, locker: locker, batchSize: batchSize, lockTTL: lockTTL, log: &l}
}

func (u *orderUC) Get(ctx context.Context, userID, orderID string) (*model.Order, error) {
	if userID == "" {
		return nil, derror.New(derror.CodeUnauthorized, "authentication required")
	}
	o, err := u.orders.FindByID(ctx, repository.NoTX, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil || o.UserID != userID {
		return nil, derror.New(derror.CodeNotFound, "order not found")
	}
	return o, nil
}

func (u *orderUC) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*model.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return u.orders.ListByUser(ctx, repository.NoTX, userID, limit, offset)
}

func (u *orderUC) Stats(ctx context.Context) (*model.OrderStats, error) {
	return u.orders.Stats(ctx, repository.NoTX)
}

// ExpireOverdue drains overdue pending orders in batches. Orders that a webhook
// settles concurrently are left alone by the CAS in MarkExpired.
func (u *orderUC) ExpireOverdue(ctx context.Context, now time.Time) (rep *ucport.SweepReport, err error) {
	defer logging.TraceDuration(u.log, "OrderUC.ExpireOverdue")()

	rep = &ucport.SweepReport{}
	if u.locker != nil {
		token, lerr := u.locker.TryLock(ctx, sweepLockKey, u.lockTTL)
		if errors.Is(lerr, domain.ErrLockHeld) {
			rep.Skipped = true
			metrics.IncSweepRun("skipped")
			u.log.Info().Msg("expiry sweep already running elsewhere")
			return rep, nil
		}
		if lerr != nil {
			metrics.IncSweepRun("error")
			return nil, lerr
		}
		defer func() {
			// a background context so the unlock survives a cancelled request
			uctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err = multierr.Append(err, u.locker.Unlock(uctx, sweepLockKey, token))
		}()
	}

	for {
		if ctx.Err() != nil {
			metrics.IncSweepRun("error")
			return rep, ctx.Err()
		}
		batch, err := u.orders.ListExpiredPending(ctx, repository.NoTX, now, u.batchSize)
		if err != nil {
			metrics.IncSweepRun("error")
			return rep, err
		}
		if len(batch) == 0 {
			break
		}
		ids := make([]string, 0, len(batch))
		for _, o := range batch {
			ids = append(ids, o.ID)
		}
		n, err := u.orders.MarkExpired(ctx, repository.NoTX, ids)
		if err != nil {
			metrics.IncSweepRun("error")
			return rep, err
		}
		rep.Expired += int(n)
		if len(batch) < u.batchSize || n == 0 {
			break
		}
	}

	metrics.AddOrdersExpired(rep.Expired)
	metrics.IncSweepRun("ok")

	stats, err := u.orders.Stats(ctx, repository.NoTX)
	if err != nil {
		u.log.Warn().Err(err).Msg("order stats unavailable after sweep")
	} else {
		rep.Stats = stats
	}

	u.log.Info().Int("expired", rep.Expired).Time("now", now).Msg("expiry sweep finished")
	return rep, nil
}

package repository

import (
	"context"
	"time"

	"ai-image-billing/internal/domain/model"
)

// -----------------------------
// Orders
// -----------------------------

type OrderRepository interface {
	Create(ctx context.Context, tx Tx, o *model.Order) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Order, error)
	FindByOrderNumber(ctx context.Context, tx Tx, orderNumber string) (*model.Order, error)
	FindByStripeSessionID(ctx context.Context, tx Tx, sessionID string) (*model.Order, error)
	FindByCreemCheckoutID(ctx context.Context, tx Tx, checkoutID string) (*model.Order, error)

	// Update applies patch; applying the same patch twice is a no-op. A status
	// patch on a terminal order fails with ErrInvalidArgument unless it repeats
	// the current status.
	Update(ctx context.Context, tx Tx, id string, patch model.OrderPatch) error
	// TransitionFromPending applies patch and status only while the order is pending.
	// It reports whether this call performed the transition.
	TransitionFromPending(ctx context.Context, tx Tx, id string, status model.OrderStatus, patch model.OrderPatch) (bool, error)

	ListExpiredPending(ctx context.Context, tx Tx, now time.Time, limit int) ([]*model.Order, error)
	// MarkExpired moves still-pending orders to expired and returns how many moved.
	MarkExpired(ctx context.Context, tx Tx, ids []string) (int64, error)
	ListByUser(ctx context.Context, tx Tx, userID string, limit, offset int) ([]*model.Order, error)
	Stats(ctx context.Context, tx Tx) (*model.OrderStats, error)
}

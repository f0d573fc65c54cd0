package repository

import (
	"context"

	"ai-image-billing/internal/domain/model"
)

// PaymentConfigRepository stores versions; nothing is updated in place.
type PaymentConfigRepository interface {
	Latest(ctx context.Context, tx Tx) (*model.PaymentConfig, error)
	Append(ctx context.Context, tx Tx, c *model.PaymentConfig) error
	History(ctx context.Context, tx Tx, limit int) ([]*model.PaymentConfig, error)
}

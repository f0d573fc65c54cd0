package adapter

import (
	"context"

	"ai-image-billing/internal/domain/model"
)

// Notifier delivers operator alerts (reconciliation gaps, failed settlements, sweep reports).
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// PriceTableProvider returns the authoritative price list for a locale.
type PriceTableProvider interface {
	GetPriceTable(ctx context.Context, locale string) ([]model.PriceEntry, error)
}

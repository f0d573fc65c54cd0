package usecase

import (
	"context"
	"time"

	"ai-image-billing/internal/domain/model"
)

// SweepReport summarises one expiry run.
type SweepReport struct {
	Expired int
	// Skipped is set when another instance held the sweep lock.
	Skipped bool
	Stats   *model.OrderStats
}

// OrderSweeper defines what schedulers and the cron entry points need from the order use case.
type OrderSweeper interface {
	// ExpireOverdue moves pending orders whose expiry passed before now to expired.
	ExpireOverdue(ctx context.Context, now time.Time) (*SweepReport, error)
}

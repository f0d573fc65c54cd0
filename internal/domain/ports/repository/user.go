package repository

import (
	"context"

	"ai-image-billing/internal/domain/model"
)

type UserRepository interface {
	Save(ctx context.Context, tx Tx, u *model.User) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	FindByEmail(ctx context.Context, tx Tx, email string) (*model.User, error)
	// AddCredits applies delta to the cached balance and returns the new value.
	// A debit that would make the balance negative returns domain.ErrInsufficientCredits.
	AddCredits(ctx context.Context, tx Tx, userID string, delta int64) (int64, error)
}

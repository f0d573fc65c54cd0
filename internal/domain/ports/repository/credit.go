package repository

import (
	"context"

	"ai-image-billing/internal/domain/model"
)

// CreditRepository is the append-only ledger.
type CreditRepository interface {
	// Insert returns domain.ErrAlreadyExists when ReferenceID was used before.
	Insert(ctx context.Context, tx Tx, entry *model.CreditTransaction) error
	FindByReference(ctx context.Context, tx Tx, referenceID string) (*model.CreditTransaction, error)
	ListByUser(ctx context.Context, tx Tx, userID string, limit, offset int) ([]*model.CreditTransaction, error)
	SumByUser(ctx context.Context, tx Tx, userID string) (int64, error)
}

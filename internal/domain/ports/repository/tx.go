package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager runs fn inside a database transaction and passes the
// transaction handle as tx. Repositories accept that handle (or NoTX for the
// pool) so a use case can compose several writes atomically without leaking
// pgx types into its own interface.
//
// Usage:
//
//	tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
//		ok, err := orders.TransitionFromPending(ctx, tx, id, model.OrderStatusCompleted, patch)
//		...
//		return credits.Insert(ctx, tx, entry)
//	})
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"ai-image-billing/internal/domain"
	"ai-image-billing/internal/domain/model"
	"ai-image-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ repository.OrderRepository = (*orderRepo)(nil)

type orderRepo struct {
	pool *pgxpool.Pool
}

func NewOrderRepo(pool *pgxpool.Pool) *orderRepo {
	return &orderRepo{pool: pool}
}

const orderColumns = `
  id, order_number, user_id, payment_provider, amount, currency, product_type,
  product_id, product_name, credits, interval, valid_months, status,
  stripe_session_id, stripe_payment_intent_id, creem_checkout_id, creem_payment_id,
  paid_email, created_at, updated_at, paid_at, expired_at, metadata`

func (r *orderRepo) Create(ctx context.Context, tx repository.Tx, o *model.Order) error {
	if o == nil || o.ID == "" || o.UserID == "" || !o.PaymentProvider.Valid() {
		return domain.ErrInvalidArgument
	}
	now := time.Now()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = o.CreatedAt
	if o.Status == "" {
		o.Status = model.OrderStatusPending
	}
	meta, err := marshalMetadata(o.Metadata)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO orders (` + orderColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23);
`
	_, err = execSQL(ctx, r.pool, tx, q,
		o.ID, o.OrderNumber, o.UserID, string(o.PaymentProvider), o.Amount, o.Currency, string(o.ProductType),
		o.ProductID, o.ProductName, o.Credits, string(o.Interval), o.ValidMonths, string(o.Status),
		o.StripeSessionID, o.StripePaymentIntentID, o.CreemCheckoutID, o.CreemPaymentID,
		o.PaidEmail, o.CreatedAt, o.UpdatedAt, o.PaidAt, o.ExpiredAt, meta,
	)
	return mapWriteErr(err)
}

func (r *orderRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Order, error) {
	return r.findOne(ctx, tx, "id", id)
}

func (r *orderRepo) FindByOrderNumber(ctx context.Context, tx repository.Tx, orderNumber string) (*model.Order, error) {
	return r.findOne(ctx, tx, "order_number", orderNumber)
}

func (r *orderRepo) FindByStripeSessionID(ctx context.Context, tx repository.Tx, sessionID string) (*model.Order, error) {
	return r.findOne(ctx, tx, "stripe_session_id", sessionID)
}

func (r *orderRepo) FindByCreemCheckoutID(ctx context.Context, tx repository.Tx, checkoutID string) (*model.Order, error) {
	return r.findOne(ctx, tx, "creem_checkout_id", checkoutID)
}

// findOne is only called with the fixed column names above.
func (r *orderRepo) findOne(ctx context.Context, tx repository.Tx, column, value string) (*model.Order, error) {
	if value == "" {
		return nil, nil
	}
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+orderColumns+` FROM orders WHERE `+column+` = $1`, value)
	if err != nil {
		return nil, err
	}
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return o, nil
}

// patchSet is shared by Update and TransitionFromPending. NULL parameters keep
// the current column value; metadata is merged key by key.
const patchSet = `
  status                   = COALESCE($2, status),
  stripe_payment_intent_id = COALESCE($3, stripe_payment_intent_id),
  creem_payment_id         = COALESCE($4, creem_payment_id),
  paid_email               = COALESCE($5, paid_email),
  paid_at                  = COALESCE($6, paid_at),
  metadata                 = metadata || $7::jsonb,
  updated_at               = NOW()`

func patchArgs(id string, status *model.OrderStatus, p model.OrderPatch) ([]interface{}, error) {
	meta, err := marshalMetadata(p.Metadata)
	if err != nil {
		return nil, domain.ErrInvalidArgument
	}
	var st *string
	if status != nil {
		s := string(*status)
		st = &s
	}
	return []interface{}{id, st, p.StripePaymentIntentID, p.CreemPaymentID, p.PaidEmail, p.PaidAt, meta}, nil
}

func (r *orderRepo) Update(ctx context.Context, tx repository.Tx, id string, patch model.OrderPatch) error {
	args, err := patchArgs(id, patch.Status, patch)
	if err != nil {
		return err
	}
	// a status patch may leave pending or repeat the current status, never
	// move a terminal order elsewhere
	q := `UPDATE orders SET ` + patchSet + `
WHERE id = $1 AND ($2::text IS NULL OR status = 'pending' OR status = $2::text)`
	tag, err := execSQL(ctx, r.pool, tx, q, args...)
	if err != nil {
		return mapWriteErr(err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	row, err := pickRow(ctx, r.pool, tx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id)
	if err != nil {
		return err
	}
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return domain.ErrReadDatabaseRow
	}
	if exists {
		return fmt.Errorf("%w: order %s is already terminal", domain.ErrInvalidArgument, id)
	}
	return domain.ErrOrderNotFound
}

// TransitionFromPending is a compare-and-set on status: of two concurrent
// callers exactly one sees true.
func (r *orderRepo) TransitionFromPending(ctx context.Context, tx repository.Tx, id string, status model.OrderStatus, patch model.OrderPatch) (bool, error) {
	if !status.IsTerminal() {
		return false, domain.ErrInvalidArgument
	}
	args, err := patchArgs(id, &status, patch)
	if err != nil {
		return false, err
	}
	q := `UPDATE orders SET ` + patchSet + ` WHERE id = $1 AND status = 'pending'`
	tag, err := execSQL(ctx, r.pool, tx, q, args...)
	if err != nil {
		return false, mapWriteErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *orderRepo) ListExpiredPending(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + orderColumns + ` FROM orders
WHERE status = 'pending' AND expired_at < $1
ORDER BY expired_at ASC LIMIT $2`
	return r.list(ctx, tx, q, now, limit)
}

func (r *orderRepo) MarkExpired(ctx context.Context, tx repository.Tx, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	const q = `UPDATE orders SET status = 'expired', updated_at = NOW()
WHERE id = ANY($1) AND status = 'pending'`
	tag, err := execSQL(ctx, r.pool, tx, q, ids)
	if err != nil {
		return 0, mapWriteErr(err)
	}
	return tag.RowsAffected(), nil
}

func (r *orderRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit, offset int) ([]*model.Order, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	const q = `SELECT ` + orderColumns + ` FROM orders
WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`
	return r.list(ctx, tx, q, userID, limit, offset)
}

func (r *orderRepo) Stats(ctx context.Context, tx repository.Tx) (*model.OrderStats, error) {
	stats := &model.OrderStats{
		CountByStatus:     map[model.OrderStatus]int64{},
		RevenueByCurrency: map[string]int64{},
	}

	rows, err := queryRows(ctx, r.pool, tx, `SELECT status, COUNT(*) FROM orders GROUP BY status`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return nil, domain.ErrReadDatabaseRow
		}
		stats.CountByStatus[model.OrderStatus(status)] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = queryRows(ctx, r.pool, tx, `SELECT currency, COALESCE(SUM(amount), 0) FROM orders WHERE status = 'completed' GROUP BY currency`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var cur string
		var sum int64
		if err := rows.Scan(&cur, &sum); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		stats.RevenueByCurrency[cur] = sum
	}
	return stats, rows.Err()
}

func (r *orderRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.Order, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o                                     model.Order
		provider, productType, interval, stat string
		meta                                  []byte
	)
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &provider, &o.Amount, &o.Currency, &productType,
		&o.ProductID, &o.ProductName, &o.Credits, &interval, &o.ValidMonths, &stat,
		&o.StripeSessionID, &o.StripePaymentIntentID, &o.CreemCheckoutID, &o.CreemPaymentID,
		&o.PaidEmail, &o.CreatedAt, &o.UpdatedAt, &o.PaidAt, &o.ExpiredAt, &meta,
	)
	if err != nil {
		return nil, err
	}
	o.PaymentProvider = model.Provider(provider)
	o.ProductType = model.ProductType(productType)
	o.Interval = model.Interval(interval)
	o.Status = model.OrderStatus(stat)
	o.Metadata = unmarshalMetadata(meta)
	return &o, nil
}

package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"ai-image-billing/internal/domain"
	"ai-image-billing/internal/domain/model"
	"ai-image-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ repository.UserRepository = (*userRepo)(nil)

type userRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *userRepo {
	return &userRepo{pool: pool}
}

const userColumns = `id, email, credits, preferred_payment_provider, preferred_currency, location, created_at, updated_at`

// Save upserts profile fields. The credit balance is owned by AddCredits and is
// only written on first insert.
func (r *userRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	if u == nil || u.ID == "" {
		return domain.ErrInvalidArgument
	}
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	const q = `
INSERT INTO users (` + userColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
  email = EXCLUDED.email,
  preferred_payment_provider = EXCLUDED.preferred_payment_provider,
  preferred_currency = EXCLUDED.preferred_currency,
  location = EXCLUDED.location,
  updated_at = EXCLUDED.updated_at;
`
	_, err := execSQL(ctx, r.pool, tx, q,
		u.ID, strings.ToLower(u.Email), u.Credits, string(u.PreferredPaymentProvider),
		strings.ToUpper(u.PreferredCurrency), strings.ToUpper(u.Location), u.CreatedAt, u.UpdatedAt,
	)
	return mapWriteErr(err)
}

func (r *userRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	return r.findOne(ctx, tx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *userRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
	return r.findOne(ctx, tx, `SELECT `+userColumns+` FROM users WHERE email = $1`, strings.ToLower(strings.TrimSpace(email)))
}

func (r *userRepo) findOne(ctx context.Context, tx repository.Tx, q string, arg interface{}) (*model.User, error) {
	row, err := pickRow(ctx, r.pool, tx, q, arg)
	if err != nil {
		return nil, err
	}
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return u, nil
}

// AddCredits moves the balance in a single guarded UPDATE so concurrent debits
// cannot drive it below zero.
func (r *userRepo) AddCredits(ctx context.Context, tx repository.Tx, userID string, delta int64) (int64, error) {
	const q = `
UPDATE users SET credits = credits + $2, updated_at = NOW()
WHERE id = $1 AND credits + $2 >= 0
RETURNING credits;
`
	row, err := pickRow(ctx, r.pool, tx, q, userID, delta)
	if err != nil {
		return 0, err
	}
	var balance int64
	err = row.Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, mapWriteErr(err)
	}

	// No row: either the user is missing or the debit was too large.
	existing, ferr := r.FindByID(ctx, tx, userID)
	if ferr != nil {
		return 0, ferr
	}
	if existing == nil {
		return 0, domain.ErrUserNotFound
	}
	return existing.Credits, domain.ErrInsufficientCredits
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	var provider string
	if err := row.Scan(&u.ID, &u.Email, &u.Credits, &provider, &u.PreferredCurrency, &u.Location, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.PreferredPaymentProvider = model.ParseProvider(provider)
	return &u, nil
}

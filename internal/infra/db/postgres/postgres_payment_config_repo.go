package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"ai-image-billing/internal/domain"
	"ai-image-billing/internal/domain/model"
	"ai-image-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ repository.PaymentConfigRepository = (*paymentConfigRepo)(nil)

type paymentConfigRepo struct {
	pool *pgxpool.Pool
}

func NewPaymentConfigRepo(pool *pgxpool.Pool) *paymentConfigRepo {
	return &paymentConfigRepo{pool: pool}
}

const paymentConfigColumns = `
  id, stripe_enabled, creem_enabled, default_provider, force_provider, maintenance_mode,
  allow_user_choice, china_only_creem, international_prefer_stripe,
  large_amount_threshold, large_amount_provider, updated_by, created_at`

// Latest returns domain.ErrNoPaymentConfig while the table is empty.
func (r *paymentConfigRepo) Latest(ctx context.Context, tx repository.Tx) (*model.PaymentConfig, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+paymentConfigColumns+` FROM payment_configs ORDER BY created_at DESC, id DESC LIMIT 1`)
	if err != nil {
		return nil, err
	}
	c, err := scanPaymentConfig(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNoPaymentConfig
	}
	if err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return c, nil
}

func (r *paymentConfigRepo) Append(ctx context.Context, tx repository.Tx, c *model.PaymentConfig) error {
	if c == nil {
		return domain.ErrInvalidArgument
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	const q = `
INSERT INTO payment_configs (` + paymentConfigColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13);
`
	_, err := execSQL(ctx, r.pool, tx, q,
		c.ID, c.StripeEnabled, c.CreemEnabled, string(c.DefaultProvider), string(c.ForceProvider), c.MaintenanceMode,
		c.AllowUserChoice, c.ChinaOnlyCreem, c.InternationalPreferStripe,
		c.LargeAmountThreshold, string(c.LargeAmountProvider), c.UpdatedBy, c.CreatedAt,
	)
	return mapWriteErr(err)
}

func (r *paymentConfigRepo) History(ctx context.Context, tx repository.Tx, limit int) ([]*model.PaymentConfig, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := queryRows(ctx, r.pool, tx, `SELECT `+paymentConfigColumns+` FROM payment_configs ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.PaymentConfig
	for rows.Next() {
		c, err := scanPaymentConfig(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanPaymentConfig(row pgx.Row) (*model.PaymentConfig, error) {
	var c model.PaymentConfig
	var def, force, large string
	err := row.Scan(
		&c.ID, &c.StripeEnabled, &c.CreemEnabled, &def, &force, &c.MaintenanceMode,
		&c.AllowUserChoice, &c.ChinaOnlyCreem, &c.InternationalPreferStripe,
		&c.LargeAmountThreshold, &large, &c.UpdatedBy, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.DefaultProvider = model.ParseProvider(def)
	c.ForceProvider = model.ParseProvider(force)
	c.LargeAmountProvider = model.ParseProvider(large)
	return &c, nil
}

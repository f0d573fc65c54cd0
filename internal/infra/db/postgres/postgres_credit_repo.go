package postgres

import (
	"context"
	"encoding/json"
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
var _ repository.CreditRepository = (*creditRepo)(nil)

type creditRepo struct {
	pool *pgxpool.Pool
}

func NewCreditRepo(pool *pgxpool.Pool) *creditRepo {
	return &creditRepo{pool: pool}
}

const creditColumns = `id, user_id, amount, type, description, reference_id, metadata, created_at`

func (r *creditRepo) Insert(ctx context.Context, tx repository.Tx, e *model.CreditTransaction) error {
	if e == nil || e.UserID == "" || e.ReferenceID == "" || !e.Type.Valid() {
		return domain.ErrInvalidArgument
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	meta, err := marshalMetadata(e.Metadata)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO credit_transactions (` + creditColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (reference_id) DO NOTHING;
`
	tag, err := execSQL(ctx, r.pool, tx, q,
		e.ID, e.UserID, e.Amount, string(e.Type), e.Description, e.ReferenceID, meta, e.CreatedAt,
	)
	if err != nil {
		return mapWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyExists
	}
	return nil
}

func (r *creditRepo) FindByReference(ctx context.Context, tx repository.Tx, referenceID string) (*model.CreditTransaction, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+creditColumns+` FROM credit_transactions WHERE reference_id = $1`, referenceID)
	if err != nil {
		return nil, err
	}
	e, err := scanCredit(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return e, nil
}

func (r *creditRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit, offset int) ([]*model.CreditTransaction, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	const q = `SELECT ` + creditColumns + ` FROM credit_transactions
WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`
	rows, err := queryRows(ctx, r.pool, tx, q, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.CreditTransaction
	for rows.Next() {
		e, err := scanCredit(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *creditRepo) SumByUser(ctx context.Context, tx repository.Tx, userID string) (int64, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT COALESCE(SUM(amount), 0) FROM credit_transactions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	var sum int64
	if err := row.Scan(&sum); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return sum, nil
}

func scanCredit(row pgx.Row) (*model.CreditTransaction, error) {
	var e model.CreditTransaction
	var typ string
	var meta []byte
	if err := row.Scan(&e.ID, &e.UserID, &e.Amount, &typ, &e.Description, &e.ReferenceID, &meta, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Type = model.CreditTxType(typ)
	e.Metadata = unmarshalMetadata(meta)
	return &e, nil
}

func marshalMetadata(m map[string]any) ([]byte, error) {
	if len(m) == 0 {
		return []byte(`{}`), nil
	}
	return json.Marshal(m)
}

func unmarshalMetadata(b []byte) map[string]any {
	if len(b) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil || len(m) == 0 {
		return nil
	}
	return m
}

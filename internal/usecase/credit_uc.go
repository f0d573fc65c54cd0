// File: internal/usecase/credit_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ai-image-billing/internal/domain"
	"ai-image-billing/internal/domain/model"
	"ai-image-billing/internal/domain/ports/repository"
	derror "ai-image-billing/internal/error"
	"ai-image-billing/internal/infra/logging"
	"ai-image-billing/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

// Compile-time check
var _ CreditUseCase = (*creditUC)(nil)

// GrantInput describes one settlement or manual grant.
type GrantInput struct {
	UserID      string
	Amount      int64
	Type        model.CreditTxType
	ReferenceID string
	Description string
	Metadata    map[string]any
}

// GrantResult reports whether this call moved the balance.
type GrantResult struct {
	Granted bool // false when the reference was already settled
	Balance int64
}

// ConsumeInput is a debit request from an authenticated user.
type ConsumeInput struct {
	UserID         string
	Amount         int64
	Reason         string
	IdempotencyKey string
	Metadata       map[string]any
}

type ConsumeResult struct {
	Transaction *model.CreditTransaction
	Balance     int64
	Replayed    bool // idempotency key already used; nothing was debited
}

// RateLimiter is the fixed-window limiter used for consume calls.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// CreditUseCase is the only writer of user balances and the credit ledger.
type CreditUseCase interface {
	Balance(ctx context.Context, userID string) (int64, error)
	History(ctx context.Context, userID string, limit, offset int) ([]*model.CreditTransaction, error)
	// Grant inserts a ledger entry and moves the balance atomically. When tx is
	// NoTX it opens its own transaction; otherwise it joins the caller's.
	Grant(ctx context.Context, tx repository.Tx, in GrantInput) (*GrantResult, error)
	Consume(ctx context.Context, in ConsumeInput) (*ConsumeResult, error)
}

type creditUC struct {
	users            repository.UserRepository
	credits          repository.CreditRepository
	tm               repository.TransactionManager
	limiter          RateLimiter
	consumePerMinute int
	log              *zerolog.Logger
}

func NewCreditUseCase(
	users repository.UserRepository,
	credits repository.CreditRepository,
	tm repository.TransactionManager,
	limiter RateLimiter,
	consumePerMinute int,
	logger *zerolog.Logger,
) *creditUC {
	l := logger.With().Str("component", "CreditUC").Logger()
	return &creditUC{
		users:            users,
		credits:          credits,
		tm:               tm,
		limiter:          limiter,
		consumePerMinute: consumePerMinute,
		log:              &l,
	}
}

func (u *creditUC) Balance(ctx context.Context, userID string) (int64, error) {
	usr, err := u.users.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		return 0, err
	}
	if usr == nil {
		return 0, domain.ErrUserNotFound
	}
	return usr.Credits, nil
}

func (u *creditUC) History(ctx context.Context, userID string, limit, offset int) ([]*model.CreditTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return u.credits.ListByUser(ctx, repository.NoTX, userID, limit, offset)
}

func (u *creditUC) Grant(ctx context.Context, tx repository.Tx, in GrantInput) (*GrantResult, error) {
	defer logging.TraceDuration(u.log, "CreditUC.Grant")()

	if in.UserID == "" || in.ReferenceID == "" || in.Amount < 0 || !in.Type.Valid() {
		return nil, domain.ErrInvalidArgument
	}

	var res *GrantResult
	run := func(ctx context.Context, tx repository.Tx) error {
		r, err := u.grantTx(ctx, tx, in)
		res = r
		return err
	}

	var err error
	if tx == repository.NoTX {
		err = u.tm.WithTx(ctx, pgx.TxOptions{}, run)
	} else {
		err = run(ctx, tx)
	}
	if err != nil {
		return nil, err
	}
	if res.Granted {
		metrics.AddCreditsGranted(string(in.Type), in.Amount)
		u.log.Info().
			Str("user_id", in.UserID).
			Str("reference_id", in.ReferenceID).
			Int64("amount", in.Amount).
			Int64("balance", res.Balance).
			Msg("credits granted")
	}
	return res, nil
}

// grantTx checks the reference first, then relies on the unique index for
// concurrent duplicates.
func (u *creditUC) grantTx(ctx context.Context, tx repository.Tx, in GrantInput) (*GrantResult, error) {
	existing, err := u.credits.FindByReference(ctx, tx, in.ReferenceID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &GrantResult{Granted: false}, nil
	}

	entry := &model.CreditTransaction{
		ID:          uuid.NewString(),
		UserID:      in.UserID,
		Amount:      in.Amount,
		Type:        in.Type,
		Description: in.Description,
		ReferenceID: in.ReferenceID,
		Metadata:    in.Metadata,
		CreatedAt:   time.Now(),
	}
	if err := u.credits.Insert(ctx, tx, entry); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return &GrantResult{Granted: false}, nil
		}
		return nil, err
	}

	balance, err := u.users.AddCredits(ctx, tx, in.UserID, in.Amount)
	if err != nil {
		return nil, err
	}
	return &GrantResult{Granted: true, Balance: balance}, nil
}

func (u *creditUC) Consume(ctx context.Context, in ConsumeInput) (*ConsumeResult, error) {
	defer logging.TraceDuration(u.log, "CreditUC.Consume")()

	in.Reason = strings.TrimSpace(in.Reason)
	if in.UserID == "" {
		return nil, derror.New(derror.CodeUnauthorized, "authentication required")
	}
	if in.Amount <= 0 {
		return nil, derror.New(derror.CodeValidation, "amount must be positive")
	}
	if in.Reason == "" {
		in.Reason = "generation"
	}

	if u.limiter != nil && u.consumePerMinute > 0 {
		ok, err := u.limiter.Allow(ctx, consumeRateKey(in.UserID), u.consumePerMinute, time.Minute)
		if err != nil {
			// limiter outage must not block paid usage
			u.log.Warn().Err(err).Str("user_id", in.UserID).Msg("rate limiter unavailable")
		} else if !ok {
			return nil, derror.New(derror.CodeRateLimit, "too many consume requests")
		}
	}

	ref := model.UsageRef(in.Reason, time.Now())
	if key := strings.TrimSpace(in.IdempotencyKey); key != "" {
		ref = fmt.Sprintf("usage:%s:%s", in.UserID, key)
	}

	var out *ConsumeResult
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		prev, err := u.credits.FindByReference(ctx, tx, ref)
		if err != nil {
			return err
		}
		if prev != nil {
			usr, err := u.users.FindByID(ctx, tx, in.UserID)
			if err != nil {
				return err
			}
			if usr == nil {
				return domain.ErrUserNotFound
			}
			out = &ConsumeResult{Transaction: prev, Balance: usr.Credits, Replayed: true}
			return nil
		}

		entry := &model.CreditTransaction{
			ID:          uuid.NewString(),
			UserID:      in.UserID,
			Amount:      -in.Amount,
			Type:        model.CreditTxUsage,
			Description: in.Reason,
			ReferenceID: ref,
			Metadata:    in.Metadata,
			CreatedAt:   time.Now(),
		}
		if err := u.credits.Insert(ctx, tx, entry); err != nil {
			return err
		}
		balance, err := u.users.AddCredits(ctx, tx, in.UserID, -in.Amount)
		if err != nil {
			return err
		}
		out = &ConsumeResult{Transaction: entry, Balance: balance}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInsufficientCredits):
			return nil, derror.Wrap(derror.CodeInsufficientCredits, err, "insufficient credits")
		case errors.Is(err, domain.ErrUserNotFound):
			return nil, derror.Wrap(derror.CodeNotFound, err, "user not found")
		case errors.Is(err, domain.ErrAlreadyExists):
			// lost a race on the same idempotency key
			return nil, derror.Wrap(derror.CodeValidation, err, "duplicate consume request")
		}
		return nil, err
	}
	if !out.Replayed {
		metrics.AddCreditsConsumed(in.Amount)
	}
	return out, nil
}

func consumeRateKey(userID string) string {
	return fmt.Sprintf("rate_limit:consume:%s", userID)
}

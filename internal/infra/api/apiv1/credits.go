package apiv1

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"ai-image-billing/internal/domain"
	"ai-image-billing/internal/domain/model"
	derror "ai-image-billing/internal/error"
	"ai-image-billing/internal/infra/api"
	"ai-image-billing/internal/infra/web"
	"ai-image-billing/internal/usecase"
)

// HeaderIdempotencyKey may carry the consume idempotency key instead of the body.
const HeaderIdempotencyKey = "Idempotency-Key"

type creditTxView struct {
	ID          string             `json:"id"`
	Amount      int64              `json:"amount"`
	Type        model.CreditTxType `json:"type"`
	Description string             `json:"description,omitempty"`
	ReferenceID string             `json:"reference_id"`
	Metadata    map[string]any     `json:"metadata,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

func toCreditTxView(t *model.CreditTransaction) creditTxView {
	return creditTxView{
		ID:          t.ID,
		Amount:      t.Amount,
		Type:        t.Type,
		Description: t.Description,
		ReferenceID: t.ReferenceID,
		Metadata:    t.Metadata,
		CreatedAt:   t.CreatedAt,
	}
}

type creditsResponse struct {
	Success      bool           `json:"success"`
	Credits      int64          `json:"credits"`
	Transactions []creditTxView `json:"transactions"`
	Limit        int            `json:"limit"`
	Offset       int            `json:"offset"`
}

func (s *Server) getCredits(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := web.SessionUserFrom(ctx)

	limit, err := api.QueryInt(r, "limit", 20, 1, 100)
	if err != nil {
		api.WriteError(w, r, s.log, err)
		return
	}
	offset, err := api.QueryInt(r, "offset", 0, 0, 1_000_000)
	if err != nil {
		api.WriteError(w, r, s.log, err)
		return
	}

	balance, err := s.deps.Credits.Balance(ctx, user.ID)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		api.WriteError(w, r, s.log, err)
		return
	}
	// a user who never bought anything has no row yet and a zero balance
	history, err := s.deps.Credits.History(ctx, user.ID, limit, offset)
	if err != nil {
		api.WriteError(w, r, s.log, err)
		return
	}

	resp := creditsResponse{
		Success:      true,
		Credits:      balance,
		Transactions: make([]creditTxView, 0, len(history)),
		Limit:        limit,
		Offset:       offset,
	}
	for _, t := range history {
		resp.Transactions = append(resp.Transactions, toCreditTxView(t))
	}
	api.WriteJSON(w, http.StatusOK, resp)
}

type consumeRequest struct {
	Amount         int64          `json:"amount" validate:"required,gt=0,lte=1000000"`
	Reason         string         `json:"reason,omitempty" validate:"omitempty,max=100"`
	IdempotencyKey string         `json:"idempotency_key,omitempty" validate:"omitempty,max=128"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

type consumeResponse struct {
	Success     bool         `json:"success"`
	Credits     int64        `json:"credits"`
	Transaction creditTxView `json:"transaction"`
	Replayed    bool         `json:"replayed,omitempty"`
}

func (s *Server) consumeCredits(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req consumeRequest
	if err := api.DecodeJSON(w, r, &req); err != nil {
		api.WriteError(w, r, s.log, err)
		return
	}
	key := req.IdempotencyKey
	if key == "" {
		key = strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
	}
	if len(key) > 128 {
		api.WriteError(w, r, s.log, derror.New(derror.CodeValidation, "idempotency key must be at most 128 characters"))
		return
	}

	res, err := s.deps.Credits.Consume(ctx, usecase.ConsumeInput{
		UserID:         web.SessionUserFrom(ctx).ID,
		Amount:         req.Amount,
		Reason:         req.Reason,
		IdempotencyKey: key,
		Metadata:       req.Metadata,
	})
	if err != nil {
		api.WriteError(w, r, s.log, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, consumeResponse{
		Success:     true,
		Credits:     res.Balance,
		Transaction: toCreditTxView(res.Transaction),
		Replayed:    res.Replayed,
	})
}

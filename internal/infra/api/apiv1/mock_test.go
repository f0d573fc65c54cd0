//go:build !integration

package apiv1_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"ai-image-billing/internal/domain"
	"ai-image-billing/internal/domain/model"
	"ai-image-billing/internal/domain/ports/repository"
	ucport "ai-image-billing/internal/domain/ports/usecase"
	"ai-image-billing/internal/usecase"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

//
// ---------------- in-memory infra mocks (repos/tx) ----------------
//

// memStore backs every repository port with maps under one mutex. WithTx
// serialises transactions, which is enough for handler-level tests.
type memStore struct {
	mu      sync.Mutex
	txMu    sync.Mutex
	users   map[string]*model.User
	orders  map[string]*model.Order
	ledger  []*model.CreditTransaction
	configs []*model.PaymentConfig
}

func newMemStore() *memStore {
	return &memStore{users: map[string]*model.User{}, orders: map[string]*model.Order{}}
}

func (s *memStore) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(ctx, "mem-tx")
}

type memUsers struct{ *memStore }

func (r memUsers) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	if prev, ok := r.users[u.ID]; ok {
		cp.Credits = prev.Credits
	}
	r.users[u.ID] = &cp
	return nil
}

func (r memUsers) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (r memUsers) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r memUsers) AddCredits(ctx context.Context, tx repository.Tx, userID string, delta int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return 0, domain.ErrUserNotFound
	}
	if u.Credits+delta < 0 {
		return u.Credits, domain.ErrInsufficientCredits
	}
	u.Credits += delta
	return u.Credits, nil
}

type memCredits struct{ *memStore }

func (r memCredits) Insert(ctx context.Context, tx repository.Tx, e *model.CreditTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.ledger {
		if t.ReferenceID == e.ReferenceID {
			return domain.ErrAlreadyExists
		}
	}
	cp := *e
	r.ledger = append(r.ledger, &cp)
	return nil
}

func (r memCredits) FindByReference(ctx context.Context, tx repository.Tx, ref string) (*model.CreditTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.ledger {
		if t.ReferenceID == ref {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (r memCredits) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit, offset int) ([]*model.CreditTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.CreditTransaction
	for i := len(r.ledger) - 1; i >= 0; i-- {
		if r.ledger[i].UserID == userID {
			out = append(out, r.ledger[i])
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memCredits) SumByUser(ctx context.Context, tx repository.Tx, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum int64
	for _, t := range r.ledger {
		if t.UserID == userID {
			sum += t.Amount
		}
	}
	return sum, nil
}

type memOrders struct{ *memStore }

func (r memOrders) Create(ctx context.Context, tx repository.Tx, o *model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[o.ID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *o
	r.orders[o.ID] = &cp
	return nil
}

func (r memOrders) find(match func(o *model.Order) bool) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if match(o) {
			cp := *o
			return &cp, nil
		}
	}
	return nil, nil
}

func (r memOrders) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Order, error) {
	return r.find(func(o *model.Order) bool { return o.ID == id })
}

func (r memOrders) FindByOrderNumber(ctx context.Context, tx repository.Tx, n string) (*model.Order, error) {
	return r.find(func(o *model.Order) bool { return o.OrderNumber == n })
}

func (r memOrders) FindByStripeSessionID(ctx context.Context, tx repository.Tx, id string) (*model.Order, error) {
	return r.find(func(o *model.Order) bool { return o.StripeSessionID != nil && *o.StripeSessionID == id })
}

func (r memOrders) FindByCreemCheckoutID(ctx context.Context, tx repository.Tx, id string) (*model.Order, error) {
	return r.find(func(o *model.Order) bool { return o.CreemCheckoutID != nil && *o.CreemCheckoutID == id })
}

func applyPatch(o *model.Order, p model.OrderPatch) {
	if p.Status != nil {
		o.Status = *p.Status
	}
	if p.StripePaymentIntentID != nil {
		o.StripePaymentIntentID = p.StripePaymentIntentID
	}
	if p.CreemPaymentID != nil {
		o.CreemPaymentID = p.CreemPaymentID
	}
	if p.PaidEmail != nil {
		o.PaidEmail = p.PaidEmail
	}
	if p.PaidAt != nil {
		o.PaidAt = p.PaidAt
	}
	o.UpdatedAt = time.Now()
}

func (r memOrders) Update(ctx context.Context, tx repository.Tx, id string, p model.OrderPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if p.Status != nil && o.Status.IsTerminal() && *p.Status != o.Status {
		return domain.ErrInvalidArgument
	}
	applyPatch(o, p)
	return nil
}

func (r memOrders) TransitionFromPending(ctx context.Context, tx repository.Tx, id string, status model.OrderStatus, p model.OrderPatch) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Status != model.OrderStatusPending {
		return false, nil
	}
	applyPatch(o, p)
	o.Status = status
	return true, nil
}

func (r memOrders) ListExpiredPending(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Order
	for _, o := range r.orders {
		if o.Status == model.OrderStatusPending && o.ExpiredAt.Before(now) && len(out) < limit {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r memOrders) MarkExpired(ctx context.Context, tx repository.Tx, ids []string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, id := range ids {
		if o, ok := r.orders[id]; ok && o.Status == model.OrderStatusPending {
			o.Status = model.OrderStatusExpired
			n++
		}
	}
	return n, nil
}

func (r memOrders) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit, offset int) ([]*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Order
	for _, o := range r.orders {
		if o.UserID == userID {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memOrders) Stats(ctx context.Context, tx repository.Tx) (*model.OrderStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := &model.OrderStats{CountByStatus: map[model.OrderStatus]int64{}, RevenueByCurrency: map[string]int64{}}
	for _, o := range r.orders {
		st.CountByStatus[o.Status]++
		if o.Status == model.OrderStatusCompleted {
			st.RevenueByCurrency[o.Currency] += o.Amount
		}
	}
	return st, nil
}

func (r memOrders) setExpiry(id string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[id].ExpiredAt = at
}

type memConfigs struct{ *memStore }

func (r memConfigs) Latest(ctx context.Context, tx repository.Tx) (*model.PaymentConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.configs) == 0 {
		return nil, domain.ErrNoPaymentConfig
	}
	cp := *r.configs[len(r.configs)-1]
	return &cp, nil
}

func (r memConfigs) Append(ctx context.Context, tx repository.Tx, c *model.PaymentConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.configs = append(r.configs, &cp)
	return nil
}

func (r memConfigs) History(ctx context.Context, tx repository.Tx, limit int) ([]*model.PaymentConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.PaymentConfig
	for i := len(r.configs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.configs[i])
	}
	return out, nil
}

type memPrices struct{ entries []model.PriceEntry }

func (p memPrices) GetPriceTable(ctx context.Context, locale string) ([]model.PriceEntry, error) {
	return p.entries, nil
}

//
// ---------------- use case mocks ----------------
//

type mockCheckoutUC struct {
	CreateSessionFunc func(ctx context.Context, user *model.SessionUser, in usecase.CheckoutInput) (*usecase.CheckoutResult, error)
}

func (m *mockCheckoutUC) CreateSession(ctx context.Context, user *model.SessionUser, in usecase.CheckoutInput) (*usecase.CheckoutResult, error) {
	return m.CreateSessionFunc(ctx, user, in)
}

type mockWebhookUC struct {
	HandleFunc           func(ctx context.Context, provider model.Provider, payload []byte, signature string) (*usecase.WebhookResult, error)
	HandleClassifiedFunc func(ctx context.Context, c usecase.Classification, payload []byte) (*usecase.WebhookResult, error)
}

func (m *mockWebhookUC) Handle(ctx context.Context, provider model.Provider, payload []byte, signature string) (*usecase.WebhookResult, error) {
	return m.HandleFunc(ctx, provider, payload, signature)
}

func (m *mockWebhookUC) HandleClassified(ctx context.Context, c usecase.Classification, payload []byte) (*usecase.WebhookResult, error) {
	return m.HandleClassifiedFunc(ctx, c, payload)
}

type mockSweeper struct {
	RunOnceFunc func(ctx context.Context) (*ucport.SweepReport, error)
}

func (m *mockSweeper) RunOnce(ctx context.Context) (*ucport.SweepReport, error) {
	return m.RunOnceFunc(ctx)
}

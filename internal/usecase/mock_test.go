//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"ai-image-billing/internal/domain"
	"ai-image-billing/internal/domain/model"
	"ai-image-billing/internal/domain/ports/adapter"
	"ai-image-billing/internal/domain/ports/repository"
)

// -----------------------------
// Utilities: tiny helpers
// -----------------------------

func i64(v int64) *int64 { return &v }

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// =============================
// Repositories
// =============================

// ---- Mock UserRepository ----

type MockUserRepo struct {
	mu   sync.Mutex
	data map[string]*model.User

	SaveFunc       func(ctx context.Context, tx repository.Tx, u *model.User) error
	FindByIDFunc   func(ctx context.Context, tx repository.Tx, id string) (*model.User, error)
	AddCreditsFunc func(ctx context.Context, tx repository.Tx, userID string, delta int64) (int64, error)
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{data: map[string]*model.User{}}
}

func (r *MockUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, u)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.data[u.ID] = &cp
	return nil
}

func (r *MockUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	if r.FindByIDFunc != nil {
		return r.FindByIDFunc(ctx, tx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.data[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (r *MockUserRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.data {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *MockUserRepo) AddCredits(ctx context.Context, tx repository.Tx, userID string, delta int64) (int64, error) {
	if r.AddCreditsFunc != nil {
		return r.AddCreditsFunc(ctx, tx, userID, delta)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.data[userID]
	if !ok {
		return 0, domain.ErrUserNotFound
	}
	if u.Credits+delta < 0 {
		return 0, domain.ErrInsufficientCredits
	}
	u.Credits += delta
	return u.Credits, nil
}

func (r *MockUserRepo) balance(id string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.data[id]; ok {
		return u.Credits
	}
	return 0
}

// ---- Mock CreditRepository ----

type MockCreditRepo struct {
	mu    sync.Mutex
	byRef map[string]*model.CreditTransaction
	order []string

	InsertFunc func(ctx context.Context, tx repository.Tx, e *model.CreditTransaction) error
}

var _ repository.CreditRepository = (*MockCreditRepo)(nil)

func NewMockCreditRepo() *MockCreditRepo {
	return &MockCreditRepo{byRef: map[string]*model.CreditTransaction{}}
}

func (r *MockCreditRepo) Insert(ctx context.Context, tx repository.Tx, e *model.CreditTransaction) error {
	if r.InsertFunc != nil {
		return r.InsertFunc(ctx, tx, e)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byRef[e.ReferenceID]; dup {
		return domain.ErrAlreadyExists
	}
	cp := *e
	r.byRef[e.ReferenceID] = &cp
	r.order = append(r.order, e.ReferenceID)
	return nil
}

func (r *MockCreditRepo) FindByReference(ctx context.Context, tx repository.Tx, ref string) (*model.CreditTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.byRef[ref]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, nil
}

func (r *MockCreditRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit, offset int) ([]*model.CreditTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.CreditTransaction
	for i := len(r.order) - 1; i >= 0; i-- {
		e := r.byRef[r.order[i]]
		if e.UserID == userID {
			cp := *e
			out = append(out, &cp)
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

func (r *MockCreditRepo) SumByUser(ctx context.Context, tx repository.Tx, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum int64
	for _, e := range r.byRef {
		if e.UserID == userID {
			sum += e.Amount
		}
	}
	return sum, nil
}

func (r *MockCreditRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byRef)
}

// ---- Mock OrderRepository ----

type MockOrderRepo struct {
	mu   sync.Mutex
	data map[string]*model.Order

	CreateFunc                func(ctx context.Context, tx repository.Tx, o *model.Order) error
	TransitionFromPendingFunc func(ctx context.Context, tx repository.Tx, id string, status model.OrderStatus, patch model.OrderPatch) (bool, error)
	ListExpiredPendingFunc    func(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.Order, error)
}

var _ repository.OrderRepository = (*MockOrderRepo)(nil)

func NewMockOrderRepo() *MockOrderRepo {
	return &MockOrderRepo{data: map[string]*model.Order{}}
}

func (r *MockOrderRepo) Create(ctx context.Context, tx repository.Tx, o *model.Order) error {
	if r.CreateFunc != nil {
		return r.CreateFunc(ctx, tx, o)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.data[o.ID]; dup {
		return domain.ErrAlreadyExists
	}
	cp := *o
	r.data[o.ID] = &cp
	return nil
}

func (r *MockOrderRepo) find(match func(o *model.Order) bool) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.data {
		if match(o) {
			cp := *o
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *MockOrderRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Order, error) {
	return r.find(func(o *model.Order) bool { return o.ID == id })
}

func (r *MockOrderRepo) FindByOrderNumber(ctx context.Context, tx repository.Tx, n string) (*model.Order, error) {
	return r.find(func(o *model.Order) bool { return o.OrderNumber == n })
}

func (r *MockOrderRepo) FindByStripeSessionID(ctx context.Context, tx repository.Tx, id string) (*model.Order, error) {
	return r.find(func(o *model.Order) bool { return o.StripeSessionID != nil && *o.StripeSessionID == id })
}

func (r *MockOrderRepo) FindByCreemCheckoutID(ctx context.Context, tx repository.Tx, id string) (*model.Order, error) {
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

func (r *MockOrderRepo) Update(ctx context.Context, tx repository.Tx, id string, patch model.OrderPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.data[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if patch.Status != nil && o.Status.IsTerminal() && *patch.Status != o.Status {
		return domain.ErrInvalidArgument
	}
	applyPatch(o, patch)
	return nil
}

func (r *MockOrderRepo) TransitionFromPending(ctx context.Context, tx repository.Tx, id string, status model.OrderStatus, patch model.OrderPatch) (bool, error) {
	if r.TransitionFromPendingFunc != nil {
		return r.TransitionFromPendingFunc(ctx, tx, id, status, patch)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.data[id]
	if !ok || o.Status != model.OrderStatusPending {
		return false, nil
	}
	patch.Status = &status
	applyPatch(o, patch)
	return true, nil
}

func (r *MockOrderRepo) ListExpiredPending(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.Order, error) {
	if r.ListExpiredPendingFunc != nil {
		return r.ListExpiredPendingFunc(ctx, tx, now, limit)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Order
	for _, o := range r.data {
		if o.Status == model.OrderStatusPending && o.ExpiredAt.Before(now) {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiredAt.Before(out[j].ExpiredAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MockOrderRepo) MarkExpired(ctx context.Context, tx repository.Tx, ids []string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, id := range ids {
		if o, ok := r.data[id]; ok && o.Status == model.OrderStatusPending {
			o.Status = model.OrderStatusExpired
			n++
		}
	}
	return n, nil
}

func (r *MockOrderRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit, offset int) ([]*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Order
	for _, o := range r.data {
		if o.UserID == userID {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MockOrderRepo) Stats(ctx context.Context, tx repository.Tx) (*model.OrderStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := &model.OrderStats{CountByStatus: map[model.OrderStatus]int64{}, RevenueByCurrency: map[string]int64{}}
	for _, o := range r.data {
		st.CountByStatus[o.Status]++
		if o.Status == model.OrderStatusCompleted {
			st.RevenueByCurrency[o.Currency] += o.Amount
		}
	}
	return st, nil
}

func (r *MockOrderRepo) get(id string) *model.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.data[id]; ok {
		cp := *o
		return &cp
	}
	return nil
}

func (r *MockOrderRepo) only() *model.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.data {
		cp := *o
		return &cp
	}
	return nil
}

// ---- Mock PaymentConfigRepository ----

type MockPaymentConfigRepo struct {
	mu       sync.Mutex
	versions []*model.PaymentConfig

	AppendFunc func(ctx context.Context, tx repository.Tx, c *model.PaymentConfig) error
}

var _ repository.PaymentConfigRepository = (*MockPaymentConfigRepo)(nil)

func NewMockPaymentConfigRepo(initial ...model.PaymentConfig) *MockPaymentConfigRepo {
	r := &MockPaymentConfigRepo{}
	for i := range initial {
		c := initial[i]
		if c.CreatedAt.IsZero() {
			c.CreatedAt = time.Now().Add(-time.Hour)
		}
		r.versions = append(r.versions, &c)
	}
	return r
}

func (r *MockPaymentConfigRepo) Latest(ctx context.Context, tx repository.Tx) (*model.PaymentConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.versions) == 0 {
		return nil, domain.ErrNoPaymentConfig
	}
	cp := *r.versions[len(r.versions)-1]
	return &cp, nil
}

func (r *MockPaymentConfigRepo) Append(ctx context.Context, tx repository.Tx, c *model.PaymentConfig) error {
	if r.AppendFunc != nil {
		return r.AppendFunc(ctx, tx, c)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.versions = append(r.versions, &cp)
	return nil
}

func (r *MockPaymentConfigRepo) History(ctx context.Context, tx repository.Tx, limit int) ([]*model.PaymentConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.PaymentConfig
	for i := len(r.versions) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *r.versions[i]
		out = append(out, &cp)
	}
	return out, nil
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
	calls      int
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with a marker tx unless WithTxFunc is set.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.calls++
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, "mock-tx")
}

// =============================
// Adapters
// =============================

// ---- Mock PaymentGateway ----

type MockGateway struct {
	mu       sync.Mutex
	Provider model.Provider
	Key      string
	Requests []adapter.CheckoutRequest

	CreateCheckoutFunc func(ctx context.Context, req adapter.CheckoutRequest) (*adapter.CheckoutSession, error)
	ParseWebhookFunc   func(payload []byte, sig string) (*adapter.WebhookEvent, error)
}

var _ adapter.PaymentGateway = (*MockGateway)(nil)

func (g *MockGateway) Name() model.Provider { return g.Provider }
func (g *MockGateway) PublicKey() string    { return g.Key }

func (g *MockGateway) CreateCheckout(ctx context.Context, req adapter.CheckoutRequest) (*adapter.CheckoutSession, error) {
	g.mu.Lock()
	g.Requests = append(g.Requests, req)
	g.mu.Unlock()
	if g.CreateCheckoutFunc != nil {
		return g.CreateCheckoutFunc(ctx, req)
	}
	ext := string(g.Provider) + "_" + uuid.NewString()[:8]
	return &adapter.CheckoutSession{URL: "https://pay.example/" + ext, ExternalID: ext}, nil
}

func (g *MockGateway) ParseWebhook(payload []byte, sig string) (*adapter.WebhookEvent, error) {
	if g.ParseWebhookFunc != nil {
		return g.ParseWebhookFunc(payload, sig)
	}
	return nil, domain.ErrInvalidSignature
}

// ---- Mock Notifier ----

type MockNotifier struct {
	mu    sync.Mutex
	Texts []string
}

var _ adapter.Notifier = (*MockNotifier)(nil)

func (n *MockNotifier) Notify(ctx context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Texts = append(n.Texts, text)
	return nil
}

func (n *MockNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.Texts)
}

// ---- Mock PriceTableProvider ----

type MockPriceTable struct {
	Entries []model.PriceEntry
	Err     error
}

var _ adapter.PriceTableProvider = (*MockPriceTable)(nil)

func (p *MockPriceTable) GetPriceTable(ctx context.Context, locale string) ([]model.PriceEntry, error) {
	return p.Entries, p.Err
}

// ---- In-memory EventGuard ----

type MockEventGuard struct {
	mu       sync.Mutex
	seen     map[string]bool
	CheckErr error
	Released []string
}

func NewMockEventGuard() *MockEventGuard {
	return &MockEventGuard{seen: map[string]bool{}}
}

func (g *MockEventGuard) CheckAndMark(ctx context.Context, scope, id string) (bool, error) {
	if g.CheckErr != nil {
		return false, g.CheckErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	k := scope + ":" + id
	if g.seen[k] {
		return false, nil
	}
	g.seen[k] = true
	return true, nil
}

func (g *MockEventGuard) Release(ctx context.Context, scope, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.seen, scope+":"+id)
	g.Released = append(g.Released, id)
	return nil
}

// ---- In-memory Locker ----

type MockLocker struct {
	mu   sync.Mutex
	held map[string]string
}

func NewMockLocker() *MockLocker {
	return &MockLocker{held: map[string]string{}}
}

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if tok, ok := l.held[key]; ok && tok != "" {
		return "", domain.ErrLockHeld
	}
	tok := uuid.NewString()
	l.held[key] = tok
	return tok, nil
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	return nil
}

// ---- Mock RateLimiter ----

type MockRateLimiter struct {
	AllowFunc func(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

func (m *MockRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if m.AllowFunc != nil {
		return m.AllowFunc(ctx, key, limit, window)
	}
	return true, nil
}

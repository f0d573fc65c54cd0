// File: internal/usecase/checkout_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"ai-image-billing/internal/domain"
	"ai-image-billing/internal/domain/model"
	"ai-image-billing/internal/domain/ports/adapter"
	"ai-image-billing/internal/domain/ports/repository"
	derror "ai-image-billing/internal/error"
	"ai-image-billing/internal/infra/logging"
	"ai-image-billing/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ CheckoutUseCase = (*checkoutUC)(nil)

// CheckoutInput is the client's description of what it wants to buy. Every
// field is checked against the server price table; the client never sets a price.
type CheckoutInput struct {
	ProductID   string
	ProductName string
	Amount      *int64
	Currency    string
	Interval    model.Interval
	Credits     int64
	ValidMonths int
	CancelURL   string
	Locale      string
}

type CheckoutResult struct {
	CheckoutURL string
	OrderID     string
	OrderNumber string
	Provider    model.Provider
	PublicKey   string
}

type CheckoutUseCase interface {
	CreateSession(ctx context.Context, user *model.SessionUser, in CheckoutInput) (*CheckoutResult, error)
}

type checkoutUC struct {
	users           repository.UserRepository
	orders          repository.OrderRepository
	configs         PaymentConfigUseCase
	prices          adapter.PriceTableProvider
	gateways        Gateways
	notifier        adapter.Notifier
	baseURL         string
	providerTimeout time.Duration
	log             *zerolog.Logger
	now             func() time.Time
}

func NewCheckoutUseCase(
	users repository.UserRepository,
	orders repository.OrderRepository,
	configs PaymentConfigUseCase,
	prices adapter.PriceTableProvider,
	gateways Gateways,
	notifier adapter.Notifier,
	baseURL string,
	providerTimeout time.Duration,
	logger *zerolog.Logger,
) *checkoutUC {
	l := logger.With().Str("component", "CheckoutUC").Logger()
	if providerTimeout <= 0 {
		providerTimeout = 10 * time.Second
	}
	return &checkoutUC{
		users:           users,
		orders:          orders,
		configs:         configs,
		prices:          prices,
		gateways:        gateways,
		notifier:        notifier,
		baseURL:         strings.TrimRight(baseURL, "/"),
		providerTimeout: providerTimeout,
		log:             &l,
		now:             time.Now,
	}
}

func (u *checkoutUC) CreateSession(ctx context.Context, user *model.SessionUser, in CheckoutInput) (*CheckoutResult, error) {
	defer logging.TraceDuration(u.log, "CheckoutUC.CreateSession")()

	if user == nil || user.ID == "" {
		return nil, derror.New(derror.CodeUnauthorized, "authentication required")
	}

	entry, err := u.resolvePrice(ctx, in)
	if err != nil {
		metrics.IncCheckout("none", "invalid")
		return nil, err
	}
	cancelURL, err := u.cancelURL(in.CancelURL)
	if err != nil {
		metrics.IncCheckout("none", "invalid")
		return nil, err
	}

	cfg, err := u.configs.Current(ctx)
	if err != nil {
		return nil, err
	}

	stored, err := u.ensureUser(ctx, user)
	if err != nil {
		return nil, err
	}
	hints := SelectionInput{
		Amount:         entry.Amount,
		UserLocation:   stored.Location,
		UserPreference: stored.PreferredPaymentProvider,
	}
	email := user.Email
	if email == "" {
		email = stored.Email
	}

	provider := SelectProvider(*cfg, hints)
	if provider == model.ProviderNone {
		metrics.IncCheckout("none", "unavailable")
		if cfg.MaintenanceMode {
			return nil, derror.New(derror.CodeMaintenance, "payments are in maintenance mode")
		}
		return nil, derror.New(derror.CodeMaintenance, "no payment provider is enabled")
	}
	gw, ok := u.gateways.Get(provider)
	if !ok {
		metrics.IncCheckout(string(provider), "unavailable")
		u.log.Error().Str("provider", string(provider)).Msg("selected provider has no credentials configured")
		return nil, derror.Newf(derror.CodeMaintenance, "payment provider %s is not configured", provider)
	}

	now := u.now()
	order := &model.Order{
		ID:              model.NewOrderID(),
		OrderNumber:     model.NewOrderNumber(now),
		UserID:          user.ID,
		PaymentProvider: provider,
		Amount:          entry.Amount,
		Currency:        entry.Currency,
		ProductType:     entry.ProductType(),
		ProductID:       entry.ProductID,
		ProductName:     entry.ProductName,
		Credits:         entry.Credits,
		Interval:        entry.Interval,
		ValidMonths:     entry.ValidMonths,
		Status:          model.OrderStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
		ExpiredAt:       entry.ExpiresAt(now),
	}
	log := u.log.With().
		Str("order_id", order.ID).
		Str("user_id", user.ID).
		Str("provider", string(provider)).
		Str("product_id", entry.ProductID).
		Logger()

	pctx, cancel := context.WithTimeout(ctx, u.providerTimeout)
	defer cancel()
	sess, err := gw.CreateCheckout(pctx, adapter.CheckoutRequest{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		UserID:        user.ID,
		CustomerEmail: email,
		Product:       *entry,
		SuccessURL:    fmt.Sprintf("%s/payment/result?order_id=%s", u.baseURL, url.QueryEscape(order.ID)),
		CancelURL:     cancelURL,
		Metadata: map[string]string{
			"order_id":     order.ID,
			"order_number": order.OrderNumber,
			"user_id":      user.ID,
			"product_id":   entry.ProductID,
		},
	})
	if err != nil {
		metrics.IncCheckout(string(provider), "provider_error")
		log.Error().Err(err).Msg("provider checkout creation failed")
		var perr *adapter.ProviderError
		if errors.As(err, &perr) && perr.Rejected() {
			return nil, derror.Wrap(derror.CodePaymentRejected, err, perr.Message)
		}
		return nil, derror.Wrap(derror.CodePayment, err, fmt.Sprintf("%s checkout failed", provider))
	}

	order.SetExternalID(sess.ExternalID)
	if err := u.orders.Create(ctx, repository.NoTX, order); err != nil {
		metrics.IncCheckout(string(provider), "persist_error")
		// the provider now holds a checkout we have no record of
		log.Error().Err(err).
			Str("external_id", sess.ExternalID).
			Msg("reconciliation gap: checkout created but order not persisted")
		u.alert(ctx, fmt.Sprintf("Reconciliation gap: %s checkout %s created for order %s but the order was not persisted: %v",
			provider, sess.ExternalID, order.ID, err))
		return nil, derror.Wrap(derror.CodeInternal, err, "failed to persist order")
	}

	metrics.IncCheckout(string(provider), "created")
	log.Info().Str("external_id", sess.ExternalID).Int64("amount", order.Amount).Str("currency", order.Currency).Msg("checkout session created")

	return &CheckoutResult{
		CheckoutURL: sess.URL,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Provider:    provider,
		PublicKey:   gw.PublicKey(),
	}, nil
}

// ensureUser returns the stored profile, creating it on the first purchase of
// a session user so the order has an owner row.
func (u *checkoutUC) ensureUser(ctx context.Context, su *model.SessionUser) (*model.User, error) {
	stored, err := u.users.FindByID(ctx, repository.NoTX, su.ID)
	if err != nil {
		return nil, err
	}
	if stored != nil {
		return stored, nil
	}
	nu, err := model.NewUser(su.ID, su.Email)
	if err != nil {
		return nil, derror.New(derror.CodeUnauthorized, "session has no usable email")
	}
	err = u.users.Save(ctx, repository.NoTX, nu)
	if err == nil {
		return nu, nil
	}
	if !errors.Is(err, domain.ErrAlreadyExists) {
		return nil, err
	}

	// either a concurrent first checkout created the row, or the email
	// belongs to a different account
	stored, err = u.users.FindByID(ctx, repository.NoTX, su.ID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, derror.Wrap(derror.CodeForbidden, domain.ErrAlreadyExists, "email is linked to another account")
	}
	return stored, nil
}

// resolvePrice validates the request and returns the matching price entry.
func (u *checkoutUC) resolvePrice(ctx context.Context, in CheckoutInput) (*model.PriceEntry, error) {
	in.ProductID = strings.TrimSpace(in.ProductID)
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))

	switch {
	case in.ProductID == "":
		return nil, derror.New(derror.CodeValidation, "product_id is required")
	case in.Amount == nil:
		return nil, derror.New(derror.CodeValidation, "amount is required")
	case in.Currency == "":
		return nil, derror.New(derror.CodeValidation, "currency is required")
	case in.Interval == "":
		return nil, derror.New(derror.CodeValidation, "interval is required")
	case !in.Interval.Valid():
		return nil, derror.New(derror.CodeValidation, "interval must be year, month or one-time")
	}
	if want, ok := in.Interval.ExpectedValidMonths(); ok && in.ValidMonths != want {
		return nil, derror.Newf(derror.CodeValidation, "interval %s requires valid_months %d", in.Interval, want)
	}

	table, err := u.prices.GetPriceTable(ctx, in.Locale)
	if err != nil {
		return nil, err
	}
	var entry *model.PriceEntry
	for i := range table {
		if table[i].ProductID == in.ProductID {
			entry = &table[i]
			break
		}
	}
	if entry == nil {
		return nil, derror.Newf(derror.CodeValidation, "unknown product %q", in.ProductID)
	}

	switch {
	case *in.Amount != entry.Amount:
		return nil, derror.New(derror.CodeValidation, "amount does not match the price table")
	case in.Currency != strings.ToUpper(entry.Currency):
		return nil, derror.New(derror.CodeValidation, "currency does not match the price table")
	case in.Interval != entry.Interval:
		return nil, derror.New(derror.CodeValidation, "interval does not match the price table")
	case in.Credits != entry.Credits:
		return nil, derror.New(derror.CodeValidation, "credits do not match the price table")
	case in.ValidMonths != entry.ValidMonths:
		return nil, derror.New(derror.CodeValidation, "valid_months does not match the price table")
	case in.ProductName != entry.ProductName:
		return nil, derror.New(derror.CodeValidation, "product_name does not match the price table")
	}
	return entry, nil
}

// cancelURL accepts only same-site targets.
func (u *checkoutUC) cancelURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return u.baseURL + "/pricing?checkout=cancelled", nil
	}
	if strings.HasPrefix(raw, "/") && !strings.HasPrefix(raw, "//") {
		return u.baseURL + raw, nil
	}
	if u.baseURL != "" && (raw == u.baseURL || strings.HasPrefix(raw, u.baseURL+"/")) {
		return raw, nil
	}
	return "", derror.New(derror.CodeValidation, "cancel_url must point to this site")
}

func (u *checkoutUC) alert(ctx context.Context, text string) {
	if u.notifier == nil {
		return
	}
	if err := u.notifier.Notify(ctx, text); err != nil {
		u.log.Warn().Err(err).Msg("alert not delivered")
	}
}

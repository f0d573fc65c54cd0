// File: internal/usecase/webhook_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ai-image-billing/internal/domain"
	"ai-image-billing/internal/domain/model"
	"ai-image-billing/internal/domain/ports/adapter"
	"ai-image-billing/internal/domain/ports/repository"
	derror "ai-image-billing/internal/error"
	"ai-image-billing/internal/infra/logging"
	"ai-image-billing/internal/infra/metrics"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

// Compile-time check
var _ WebhookUseCase = (*webhookUC)(nil)

// EventGuard remembers provider event ids that were already processed.
type EventGuard interface {
	// CheckAndMark returns true the first time an id is seen.
	CheckAndMark(ctx context.Context, scope, eventID string) (bool, error)
	Release(ctx context.Context, scope, eventID string) error
}

type WebhookOutcome string

const (
	OutcomeProcessed       WebhookOutcome = "processed"
	OutcomeIgnored         WebhookOutcome = "ignored"
	OutcomeDuplicate       WebhookOutcome = "duplicate"
	OutcomeAlreadyTerminal WebhookOutcome = "already_terminal"
)

type WebhookResult struct {
	Outcome WebhookOutcome
	EventID string
	OrderID string
	Status  model.OrderStatus
}

type WebhookUseCase interface {
	// Handle verifies and applies one delivery from a known provider.
	Handle(ctx context.Context, provider model.Provider, payload []byte, signature string) (*WebhookResult, error)
	// HandleClassified dispatches a delivery that arrived on the generic endpoint.
	HandleClassified(ctx context.Context, c Classification, payload []byte) (*WebhookResult, error)
}

type webhookUC struct {
	orders   repository.OrderRepository
	credits  CreditUseCase
	tm       repository.TransactionManager
	gateways Gateways
	guard    EventGuard
	notifier adapter.Notifier
	log      *zerolog.Logger
	now      func() time.Time
}

func NewWebhookUseCase(
	orders repository.OrderRepository,
	credits CreditUseCase,
	tm repository.TransactionManager,
	gateways Gateways,
	guard EventGuard,
	notifier adapter.Notifier,
	logger *zerolog.Logger,
) *webhookUC {
	l := logger.With().Str("component", "WebhookUC").Logger()
	return &webhookUC{
		orders:   orders,
		credits:  credits,
		tm:       tm,
		gateways: gateways,
		guard:    guard,
		notifier: notifier,
		log:      &l,
		now:      time.Now,
	}
}

var errNotPending = errors.New("order left pending concurrently")

func (u *webhookUC) HandleClassified(ctx context.Context, c Classification, payload []byte) (*WebhookResult, error) {
	switch c.Source {
	case SourceStripe:
		return u.Handle(ctx, model.ProviderStripe, payload, c.Signature)
	case SourceCreem:
		return u.Handle(ctx, model.ProviderCreem, payload, c.Signature)
	case SourcePayPal:
		metrics.IncWebhook("paypal", "unsupported")
		u.log.Warn().Msg("paypal webhook received but paypal is not a supported provider")
		return nil, derror.New(derror.CodeUnsupportedProvider, "paypal webhooks are not supported")
	}
	metrics.IncWebhook("unknown", "unsupported")
	u.log.Warn().Str("hint", c.Hint).Int("bytes", len(payload)).Msg("unclassified webhook")
	return nil, derror.Newf(derror.CodeUnsupportedProvider, "unrecognised webhook: %s", c.Hint)
}

func (u *webhookUC) Handle(ctx context.Context, provider model.Provider, payload []byte, signature string) (*WebhookResult, error) {
	defer logging.TraceDuration(u.log, "WebhookUC.Handle")()
	start := time.Now()
	defer func() { metrics.ObserveWebhook(string(provider), time.Since(start)) }()

	log := u.log.With().Str("provider", string(provider)).Logger()

	gw, ok := u.gateways.Get(provider)
	if !ok {
		metrics.IncWebhook(string(provider), "unsupported")
		return nil, derror.Newf(derror.CodeUnsupportedProvider, "provider %q is not configured", provider)
	}

	ev, err := gw.ParseWebhook(payload, signature)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidSignature):
			metrics.IncWebhook(string(provider), "invalid_signature")
			log.Warn().Err(err).Msg("webhook signature rejected")
			return nil, derror.Wrap(derror.CodeInvalidSignature, err, "invalid webhook signature")
		case errors.Is(err, domain.ErrInvalidArgument):
			metrics.IncWebhook(string(provider), "malformed")
			log.Warn().Err(err).Msg("malformed webhook payload")
			return nil, derror.Wrap(derror.CodeValidation, err, "malformed webhook payload")
		}
		metrics.IncWebhook(string(provider), "error")
		return nil, err
	}

	log = log.With().
		Str("event_id", ev.ID).
		Str("event_type", ev.Type).
		Str("external_id", ev.ExternalID).
		Logger()

	res := &WebhookResult{EventID: ev.ID}
	if ev.Kind == adapter.WebhookIgnored {
		metrics.IncWebhook(string(provider), "ignored")
		log.Info().Msg("webhook event type ignored")
		res.Outcome = OutcomeIgnored
		return res, nil
	}

	scope := "webhook:" + string(provider)
	if u.guard != nil && ev.ID != "" {
		first, gerr := u.guard.CheckAndMark(ctx, scope, ev.ID)
		switch {
		case gerr != nil:
			// the order CAS and the ledger reference still prevent double settlement
			log.Warn().Err(gerr).Msg("event guard unavailable")
		case !first:
			metrics.IncWebhook(string(provider), "duplicate")
			log.Info().Msg("duplicate webhook delivery")
			res.Outcome = OutcomeDuplicate
			return res, nil
		}
	}

	res, err = u.apply(ctx, &log, ev)
	if err != nil {
		if u.guard != nil && ev.ID != "" {
			if rerr := u.guard.Release(context.Background(), scope, ev.ID); rerr != nil {
				log.Warn().Err(rerr).Msg("event guard release failed")
			}
		}
		metrics.IncWebhook(string(provider), "error")
		return nil, err
	}
	metrics.IncWebhook(string(provider), string(res.Outcome))
	return res, nil
}

func (u *webhookUC) apply(ctx context.Context, log *zerolog.Logger, ev *adapter.WebhookEvent) (*WebhookResult, error) {
	res := &WebhookResult{EventID: ev.ID}

	order, err := u.findOrder(ctx, ev)
	if err != nil {
		log.Error().Err(err).Str("order_id", ev.OrderID).Msg("order lookup failed")
		return nil, derror.Wrap(derror.CodeInternal, err, "order lookup failed")
	}
	if order == nil {
		log.Warn().Str("order_id", ev.OrderID).Msg("webhook for unknown order")
		return nil, derror.New(derror.CodeNotFound, "order not found")
	}
	res.OrderID = order.ID
	l := log.With().Str("order_id", order.ID).Logger()
	log = &l
	ctx = logging.WithOrderID(ctx, order.ID)

	if order.Status.IsTerminal() {
		log.Info().Str("status", string(order.Status)).Msg("order already terminal")
		res.Outcome = OutcomeAlreadyTerminal
		res.Status = order.Status
		return res, nil
	}

	var target model.OrderStatus
	switch ev.Kind {
	case adapter.WebhookCheckoutCompleted:
		target = model.OrderStatusCompleted
	case adapter.WebhookPaymentFailed:
		target = model.OrderStatusFailed
	case adapter.WebhookCheckoutExpired:
		target = model.OrderStatusCancelled
	default:
		res.Outcome = OutcomeIgnored
		return res, nil
	}

	patch := model.OrderPatch{}
	if ev.PaymentID != "" {
		pid := ev.PaymentID
		switch order.PaymentProvider {
		case model.ProviderStripe:
			patch.StripePaymentIntentID = &pid
		case model.ProviderCreem:
			patch.CreemPaymentID = &pid
		}
	}
	if target == model.OrderStatusCompleted {
		paidAt := u.now()
		patch.PaidAt = &paidAt
		if ev.CustomerEmail != "" {
			email := ev.CustomerEmail
			patch.PaidEmail = &email
		}
		if ev.Amount > 0 && (ev.Amount != order.Amount || (ev.Currency != "" && !strings.EqualFold(ev.Currency, order.Currency))) {
			log.Warn().
				Int64("paid_amount", ev.Amount).Str("paid_currency", ev.Currency).
				Int64("order_amount", order.Amount).Str("order_currency", order.Currency).
				Msg("paid amount differs from order")
			u.alert(ctx, fmt.Sprintf("Amount mismatch on order %s (%s): paid %s, expected %s",
				order.ID, order.PaymentProvider, model.FormatAmount(ev.Amount, ev.Currency), model.FormatAmount(order.Amount, order.Currency)))
		}
	}

	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		moved, err := u.orders.TransitionFromPending(ctx, tx, order.ID, target, patch)
		if err != nil {
			return err
		}
		if !moved {
			return errNotPending
		}
		if target != model.OrderStatusCompleted {
			return nil
		}
		txType := model.CreditTxPurchase
		if order.Amount == 0 {
			txType = model.CreditTxGift
		}
		_, err = u.credits.Grant(ctx, tx, GrantInput{
			UserID:      order.UserID,
			Amount:      order.Credits,
			Type:        txType,
			ReferenceID: model.OrderSettlementRef(order.ID),
			Description: fmt.Sprintf("%s (%s)", order.ProductName, order.OrderNumber),
			Metadata: map[string]any{
				"order_id":   order.ID,
				"provider":   string(order.PaymentProvider),
				"event_id":   ev.ID,
				"product_id": order.ProductID,
			},
		})
		return err
	})
	if errors.Is(err, errNotPending) {
		log.Info().Msg("order left pending before this event was applied")
		res.Outcome = OutcomeAlreadyTerminal
		return res, nil
	}
	if err != nil {
		log.Error().Err(err).Str("target_status", string(target)).Msg("webhook settlement failed")
		if target == model.OrderStatusCompleted {
			u.alert(ctx, fmt.Sprintf("Settlement failed for order %s (%s event %s): %v",
				order.ID, order.PaymentProvider, ev.ID, err))
		}
		return nil, derror.Wrap(derror.CodeInternal, err, "failed to apply payment event")
	}

	metrics.IncPayment(string(order.PaymentProvider), string(target))
	if target == model.OrderStatusCompleted {
		metrics.AddPaymentRevenue(order.Currency, order.Amount)
	}
	log.Info().Str("status", string(target)).Int64("credits", order.Credits).Msg("order transitioned")

	res.Outcome = OutcomeProcessed
	res.Status = target
	return res, nil
}

// findOrder looks up by the provider reference first and falls back to the
// order id echoed through checkout metadata.
func (u *webhookUC) findOrder(ctx context.Context, ev *adapter.WebhookEvent) (*model.Order, error) {
	var (
		o   *model.Order
		err error
	)
	if ev.ExternalID != "" {
		switch ev.Provider {
		case model.ProviderStripe:
			o, err = u.orders.FindByStripeSessionID(ctx, repository.NoTX, ev.ExternalID)
		case model.ProviderCreem:
			o, err = u.orders.FindByCreemCheckoutID(ctx, repository.NoTX, ev.ExternalID)
		}
		if err != nil || o != nil {
			return o, err
		}
	}
	if ev.OrderID == "" {
		return nil, nil
	}
	o, err = u.orders.FindByID(ctx, repository.NoTX, ev.OrderID)
	if err != nil || o == nil {
		return nil, err
	}
	if o.PaymentProvider != ev.Provider {
		return nil, nil
	}
	return o, nil
}

func (u *webhookUC) alert(ctx context.Context, text string) {
	if u.notifier == nil {
		return
	}
	if err := u.notifier.Notify(ctx, text); err != nil {
		u.log.Warn().Err(err).Msg("alert not delivered")
	}
}

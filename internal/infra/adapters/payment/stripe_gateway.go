// File: internal/infra/adapters/payment/stripe_gateway.go
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"
	"github.com/stripe/stripe-go/v84/webhook"

	"ai-image-billing/internal/config"
	"ai-image-billing/internal/domain"
	"ai-image-billing/internal/domain/model"
	"ai-image-billing/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*StripeGateway)(nil)

var (
	errStripeKeyRequired    = errors.New("stripe secret key is required")
	errStripeSecretRequired = errors.New("stripe webhook secret is required")
)

// StripeGateway creates hosted Checkout Sessions and verifies Stripe webhooks.
type StripeGateway struct {
	publishableKey string
	webhookSecret  string
	newSession     func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

func NewStripeGateway(cfg config.StripeConfig) (*StripeGateway, error) {
	key := strings.TrimSpace(cfg.SecretKey)
	if key == "" {
		return nil, errStripeKeyRequired
	}
	secret := strings.TrimSpace(cfg.WebhookSecret)
	if secret == "" {
		return nil, errStripeSecretRequired
	}
	if err := validateStripeKey(cfg.Environment, key); err != nil {
		return nil, err
	}
	stripe.Key = key
	return &StripeGateway{
		publishableKey: cfg.PublishableKey,
		webhookSecret:  secret,
		newSession:     session.New,
	}, nil
}

func validateStripeKey(env, key string) error {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "", "test":
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return errors.New("stripe test environment requires a test secret key (sk_test/rk_test)")
	case "live":
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return errors.New("stripe live environment requires a live secret key (sk_live/rk_live)")
	}
	return fmt.Errorf("stripe environment must be test or live, got %q", env)
}

func (g *StripeGateway) Name() model.Provider { return model.ProviderStripe }

func (g *StripeGateway) PublicKey() string { return g.publishableKey }

// CreateCheckout charges the priced amount once. Subscription products are
// sold as prepaid periods; renewal is a new order.
func (g *StripeGateway) CreateCheckout(ctx context.Context, req adapter.CheckoutRequest) (*adapter.CheckoutSession, error) {
	p := req.Product
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.OrderID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(p.Currency)),
				UnitAmount: stripe.Int64(p.Amount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(p.ProductName),
				},
			},
		}},
		Metadata: req.Metadata,
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: req.Metadata,
		},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.Context = ctx

	s, err := g.newSession(params)
	if err != nil {
		return nil, stripeProviderError(err)
	}
	if s == nil || s.ID == "" || s.URL == "" {
		return nil, &adapter.ProviderError{Provider: model.ProviderStripe, Message: "empty checkout session"}
	}
	return &adapter.CheckoutSession{URL: s.URL, ExternalID: s.ID}, nil
}

func stripeProviderError(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		status := se.HTTPStatusCode
		if se.Type == stripe.ErrorTypeInvalidRequest && status == 0 {
			status = 400
		}
		return &adapter.ProviderError{Provider: model.ProviderStripe, StatusCode: status, Message: se.Msg, Err: err}
	}
	return &adapter.ProviderError{Provider: model.ProviderStripe, Message: err.Error(), Err: err}
}

// ParseWebhook verifies the Stripe-Signature header and normalises checkout
// session events. Other event types come back as WebhookIgnored.
func (g *StripeGateway) ParseWebhook(payload []byte, signatureHeader string) (*adapter.WebhookEvent, error) {
	if signatureHeader == "" {
		return nil, fmt.Errorf("stripe: missing signature: %w", domain.ErrInvalidSignature)
	}
	ev, err := webhook.ConstructEventWithOptions(payload, signatureHeader, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("stripe: %v: %w", err, domain.ErrInvalidSignature)
	}

	out := &adapter.WebhookEvent{
		ID:       ev.ID,
		Provider: model.ProviderStripe,
		Type:     string(ev.Type),
		Kind:     stripeEventKind(ev.Type),
	}
	if out.Kind == adapter.WebhookIgnored {
		return out, nil
	}
	if ev.Data == nil || len(ev.Data.Raw) == 0 {
		return nil, fmt.Errorf("stripe: event %s has no data: %w", ev.ID, domain.ErrInvalidArgument)
	}

	var cs stripe.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &cs); err != nil {
		return nil, fmt.Errorf("stripe: decode checkout session: %v: %w", err, domain.ErrInvalidArgument)
	}
	// checkout.session.completed fires before delayed methods settle; the
	// async_payment_succeeded event carries the final state for those.
	if ev.Type == stripe.EventTypeCheckoutSessionCompleted && cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
		out.Kind = adapter.WebhookIgnored
		return out, nil
	}

	out.ExternalID = cs.ID
	out.OrderID = cs.ClientReferenceID
	if id := cs.Metadata["order_id"]; id != "" {
		out.OrderID = id
	}
	if cs.PaymentIntent != nil {
		out.PaymentID = cs.PaymentIntent.ID
	}
	out.CustomerEmail = cs.CustomerEmail
	if cs.CustomerDetails != nil && cs.CustomerDetails.Email != "" {
		out.CustomerEmail = cs.CustomerDetails.Email
	}
	out.Amount = cs.AmountTotal
	out.Currency = strings.ToUpper(string(cs.Currency))
	return out, nil
}

func stripeEventKind(t stripe.EventType) adapter.WebhookEventKind {
	switch t {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		return adapter.WebhookCheckoutCompleted
	case stripe.EventTypeCheckoutSessionAsyncPaymentFailed:
		return adapter.WebhookPaymentFailed
	case stripe.EventTypeCheckoutSessionExpired:
		return adapter.WebhookCheckoutExpired
	}
	return adapter.WebhookIgnored
}

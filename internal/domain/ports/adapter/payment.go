package adapter

import (
	"context"
	"fmt"

	"ai-image-billing/internal/domain/model"
)

// CheckoutRequest is what a provider needs to host a checkout page.
type CheckoutRequest struct {
	OrderID       string
	OrderNumber   string
	UserID        string
	CustomerEmail string
	Product       model.PriceEntry
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
}

// CheckoutSession is the provider-hosted checkout created for an order.
type CheckoutSession struct {
	URL        string
	ExternalID string // stripe session id / creem checkout id
}

type WebhookEventKind string

const (
	WebhookCheckoutCompleted WebhookEventKind = "checkout_completed"
	WebhookPaymentFailed     WebhookEventKind = "payment_failed"
	WebhookCheckoutExpired   WebhookEventKind = "checkout_expired"
	WebhookIgnored           WebhookEventKind = "ignored"
)

// WebhookEvent is a verified provider event normalised to the fields the
// reconciler needs.
type WebhookEvent struct {
	ID            string
	Provider      model.Provider
	Type          string // raw provider event type
	Kind          WebhookEventKind
	ExternalID    string // checkout reference used for order lookup
	OrderID       string // our order id echoed back through metadata, if any
	PaymentID     string // payment intent / provider order id
	CustomerEmail string
	Amount        int64
	Currency      string
}

// PaymentGateway is the hex port for hosted-checkout providers.
type PaymentGateway interface {
	Name() model.Provider
	// PublicKey is the publishable key handed to the browser, if the provider has one.
	PublicKey() string
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	// ParseWebhook verifies the signature and decodes the event. Signature
	// failures wrap domain.ErrInvalidSignature; malformed payloads wrap
	// domain.ErrInvalidArgument.
	ParseWebhook(payload []byte, signatureHeader string) (*WebhookEvent, error)
}

// ProviderError carries what a provider reported when it refused a request.
type ProviderError struct {
	Provider   model.Provider
	StatusCode int // HTTP status returned by the provider, 0 when unreachable
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Rejected reports whether the provider refused the request as invalid
// rather than failing.
func (e *ProviderError) Rejected() bool { return e.StatusCode >= 400 && e.StatusCode < 500 }

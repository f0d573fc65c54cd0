package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"

	"ai-image-billing/internal/domain/model"
	"ai-image-billing/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*FakeGateway)(nil)

// FakeCheckoutPath is served by the API when the fake provider is enabled.
const FakeCheckoutPath = "/payment/fake/checkout"

var ErrFakeCheckoutNotFound = errors.New("fake: checkout not found")

// FakeGateway stands in for Creem during development and end-to-end tests.
// It hosts no page of its own: the checkout URL points back at this service,
// and SignedEvent produces a Creem-shaped webhook signed with the fake secret.
type FakeGateway struct {
	baseURL string
	secret  string

	mu        sync.Mutex
	checkouts map[string]adapter.CheckoutRequest // checkout id -> request
}

func NewFakeGateway(baseURL, secret string) *FakeGateway {
	return &FakeGateway{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secret:    secret,
		checkouts: make(map[string]adapter.CheckoutRequest),
	}
}

func (g *FakeGateway) Name() model.Provider { return model.ProviderCreem }

func (g *FakeGateway) PublicKey() string { return "" }

func (g *FakeGateway) CreateCheckout(ctx context.Context, req adapter.CheckoutRequest) (*adapter.CheckoutSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, &adapter.ProviderError{Provider: model.ProviderCreem, Message: err.Error(), Err: err}
	}
	id := "fake_ch_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	g.mu.Lock()
	g.checkouts[id] = req
	g.mu.Unlock()

	q := url.Values{"checkout_id": {id}}
	return &adapter.CheckoutSession{
		URL:        g.baseURL + FakeCheckoutPath + "?" + q.Encode(),
		ExternalID: id,
	}, nil
}

func (g *FakeGateway) ParseWebhook(payload []byte, signatureHeader string) (*adapter.WebhookEvent, error) {
	return parseCreemEvent(model.ProviderCreem, g.secret, payload, signatureHeader)
}

// SignedEvent builds the webhook the real provider would send for checkoutID.
// kind selects the Creem event type; the returned signature belongs in the
// creem-signature header. The success URL of the checkout is returned so a
// browser can be sent back to the result page.
func (g *FakeGateway) SignedEvent(checkoutID string, kind adapter.WebhookEventKind) (payload []byte, signature, successURL string, err error) {
	g.mu.Lock()
	req, ok := g.checkouts[checkoutID]
	g.mu.Unlock()
	if !ok {
		return nil, "", "", ErrFakeCheckoutNotFound
	}

	eventType := creemEventCheckoutCompleted
	switch kind {
	case adapter.WebhookPaymentFailed:
		eventType = creemEventPaymentFailed
	case adapter.WebhookCheckoutExpired:
		eventType = creemEventCheckoutExpired
	}

	ev := creemEvent{ID: "fake_evt_" + uuid.NewString(), EventType: eventType}
	ev.Object.ID = checkoutID
	ev.Object.RequestID = req.OrderID
	ev.Object.Order.ID = "fake_ord_" + checkoutID
	ev.Object.Order.Amount = req.Product.Amount
	ev.Object.Order.Currency = req.Product.Currency
	ev.Object.Customer.Email = req.CustomerEmail
	ev.Object.Metadata = req.Metadata

	payload, err = json.Marshal(ev)
	if err != nil {
		return nil, "", "", fmt.Errorf("fake: encode event: %w", err)
	}
	return payload, SignPayload(g.secret, payload), req.SuccessURL, nil
}

// File: internal/infra/adapters/payment/creem_gateway.go
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"ai-image-billing/internal/config"
	"ai-image-billing/internal/domain"
	"ai-image-billing/internal/domain/model"
	"ai-image-billing/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*CreemGateway)(nil)

const creemAPIKeyHeader = "x-api-key"

var errCreemKeyRequired = errors.New("creem api key and webhook secret are required")

// CreemGateway talks to the Creem REST API with resty.
type CreemGateway struct {
	client        *resty.Client
	webhookSecret string
}

func NewCreemGateway(cfg config.CreemConfig, timeout time.Duration) (*CreemGateway, error) {
	if strings.TrimSpace(cfg.APIKey) == "" || strings.TrimSpace(cfg.WebhookSecret) == "" {
		return nil, errCreemKeyRequired
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader(creemAPIKeyHeader, cfg.APIKey).
		SetHeader("Content-Type", "application/json")
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	return &CreemGateway{client: c, webhookSecret: cfg.WebhookSecret}, nil
}

func (g *CreemGateway) Name() model.Provider { return model.ProviderCreem }

// PublicKey is empty: Creem checkouts are fully hosted.
func (g *CreemGateway) PublicKey() string { return "" }

type creemCheckoutRequest struct {
	ProductID  string            `json:"product_id"`
	RequestID  string            `json:"request_id"`
	SuccessURL string            `json:"success_url,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Customer   *creemCustomer    `json:"customer,omitempty"`
}

type creemCustomer struct {
	Email string `json:"email,omitempty"`
}

type creemCheckoutResponse struct {
	ID          string `json:"id"`
	CheckoutURL string `json:"checkout_url"`
}

type creemErrorResponse struct {
	Message json.RawMessage `json:"message"`
	Error   string          `json:"error"`
}

func (g *CreemGateway) CreateCheckout(ctx context.Context, req adapter.CheckoutRequest) (*adapter.CheckoutSession, error) {
	if req.Product.CreemProductID == "" {
		return nil, &adapter.ProviderError{
			Provider:   model.ProviderCreem,
			StatusCode: 400,
			Message:    fmt.Sprintf("product %s has no creem product id", req.Product.ProductID),
		}
	}
	body := creemCheckoutRequest{
		ProductID:  req.Product.CreemProductID,
		RequestID:  req.OrderID,
		SuccessURL: req.SuccessURL,
		Metadata:   req.Metadata,
	}
	if req.CustomerEmail != "" {
		body.Customer = &creemCustomer{Email: req.CustomerEmail}
	}

	var out creemCheckoutResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/v1/checkouts")
	if err != nil {
		return nil, &adapter.ProviderError{Provider: model.ProviderCreem, Message: err.Error(), Err: err}
	}
	if resp.IsError() {
		return nil, &adapter.ProviderError{
			Provider:   model.ProviderCreem,
			StatusCode: resp.StatusCode(),
			Message:    creemErrorMessage(resp.Body()),
		}
	}
	if out.ID == "" || out.CheckoutURL == "" {
		return nil, &adapter.ProviderError{Provider: model.ProviderCreem, StatusCode: resp.StatusCode(), Message: "empty checkout response"}
	}
	return &adapter.CheckoutSession{URL: out.CheckoutURL, ExternalID: out.ID}, nil
}

// creemErrorMessage accepts both a string and a list of strings in "message".
func creemErrorMessage(body []byte) string {
	var e creemErrorResponse
	if json.Unmarshal(body, &e) != nil {
		return strings.TrimSpace(string(body))
	}
	var one string
	if json.Unmarshal(e.Message, &one) == nil && one != "" {
		return one
	}
	var many []string
	if json.Unmarshal(e.Message, &many) == nil && len(many) > 0 {
		return strings.Join(many, "; ")
	}
	if e.Error != "" {
		return e.Error
	}
	return "creem request failed"
}

func (g *CreemGateway) ParseWebhook(payload []byte, signatureHeader string) (*adapter.WebhookEvent, error) {
	return parseCreemEvent(model.ProviderCreem, g.webhookSecret, payload, signatureHeader)
}

// creemEvent is the subset of a Creem webhook the reconciler reads.
type creemEvent struct {
	ID        string `json:"id"`
	EventType string `json:"eventType"`
	Object    struct {
		ID        string `json:"id"`
		RequestID string `json:"request_id"`
		Order     struct {
			ID       string `json:"id"`
			Amount   int64  `json:"amount"`
			Currency string `json:"currency"`
		} `json:"order"`
		Customer struct {
			Email string `json:"email"`
		} `json:"customer"`
		Metadata map[string]string `json:"metadata"`
	} `json:"object"`
}

const (
	creemEventCheckoutCompleted = "checkout.completed"
	creemEventCheckoutExpired   = "checkout.expired"
	creemEventPaymentFailed     = "payment.failed"
)

func creemEventKind(t string) adapter.WebhookEventKind {
	switch t {
	case creemEventCheckoutCompleted:
		return adapter.WebhookCheckoutCompleted
	case creemEventPaymentFailed, "checkout.failed":
		return adapter.WebhookPaymentFailed
	case creemEventCheckoutExpired:
		return adapter.WebhookCheckoutExpired
	}
	return adapter.WebhookIgnored
}

func parseCreemEvent(provider model.Provider, secret string, payload []byte, signature string) (*adapter.WebhookEvent, error) {
	if signature == "" || !validSignature(secret, payload, signature) {
		return nil, fmt.Errorf("creem: signature mismatch: %w", domain.ErrInvalidSignature)
	}
	var ev creemEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("creem: decode event: %v: %w", err, domain.ErrInvalidArgument)
	}
	if ev.ID == "" || ev.EventType == "" {
		return nil, fmt.Errorf("creem: event id and type are required: %w", domain.ErrInvalidArgument)
	}

	out := &adapter.WebhookEvent{
		ID:       ev.ID,
		Provider: provider,
		Type:     ev.EventType,
		Kind:     creemEventKind(ev.EventType),
	}
	if out.Kind == adapter.WebhookIgnored {
		return out, nil
	}
	o := ev.Object
	out.ExternalID = o.ID
	out.OrderID = o.RequestID
	if id := o.Metadata["order_id"]; id != "" {
		out.OrderID = id
	}
	out.PaymentID = o.Order.ID
	out.CustomerEmail = o.Customer.Email
	out.Amount = o.Order.Amount
	out.Currency = strings.ToUpper(o.Order.Currency)
	return out, nil
}

// File: internal/usecase/webhook_classify.go
package usecase

import (
	"encoding/json"
	"net/http"
	"strings"
)

// WebhookSource is the closed set of senders the generic endpoint recognises.
type WebhookSource int

const (
	SourceUnknown WebhookSource = iota
	SourceStripe
	SourceCreem
	SourcePayPal
)

func (s WebhookSource) String() string {
	switch s {
	case SourceStripe:
		return "stripe"
	case SourceCreem:
		return "creem"
	case SourcePayPal:
		return "paypal"
	}
	return "unknown"
}

const (
	HeaderStripeSignature = "Stripe-Signature"
	HeaderCreemSignature  = "creem-signature"
	HeaderPayPalSignature = "Paypal-Transmission-Sig"
)

// Classification is the routing decision for one delivery. Hint explains an
// Unknown result and is only used for diagnostics.
type Classification struct {
	Source    WebhookSource
	Signature string
	Hint      string
}

// ClassifyWebhook picks the sender from signature headers. The payload is only
// inspected when no header matched, and never selects a verifier.
func ClassifyWebhook(h http.Header, body []byte) Classification {
	if sig := h.Get(HeaderStripeSignature); sig != "" {
		return Classification{Source: SourceStripe, Signature: sig}
	}
	if sig := h.Get(HeaderCreemSignature); sig != "" {
		return Classification{Source: SourceCreem, Signature: sig}
	}
	if sig := h.Get(HeaderPayPalSignature); sig != "" {
		return Classification{Source: SourcePayPal, Signature: sig}
	}
	return Classification{Source: SourceUnknown, Hint: payloadHint(body)}
}

func payloadHint(body []byte) string {
	var probe struct {
		Object    string          `json:"object"`
		Type      string          `json:"type"`
		EventType string          `json:"eventType"`
		PayPalEvt string          `json:"event_type"`
		Resource  json.RawMessage `json:"resource"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return "payload is not JSON and no signature header was sent"
	}
	switch {
	case probe.Object == "event" && probe.Type != "":
		return "payload looks like a Stripe event but the Stripe-Signature header is missing"
	case probe.EventType != "":
		return "payload looks like a Creem event but the creem-signature header is missing"
	case probe.PayPalEvt != "" && len(probe.Resource) > 0:
		return "payload looks like a PayPal event but the PayPal transmission headers are missing"
	case strings.TrimSpace(probe.Type) != "":
		return "unrecognised event type " + probe.Type + " without a signature header"
	}
	return "no signature header was sent"
}

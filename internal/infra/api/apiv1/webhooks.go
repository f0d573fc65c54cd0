package apiv1

import (
	"io"
	"net/http"

	"ai-image-billing/internal/domain/model"
	derror "ai-image-billing/internal/error"
	"ai-image-billing/internal/infra/api"
	"ai-image-billing/internal/usecase"
)

const maxWebhookBytes = 1 << 20

type webhookResponse struct {
	Received bool                   `json:"received"`
	Outcome  usecase.WebhookOutcome `json:"outcome"`
	EventID  string                 `json:"event_id,omitempty"`
}

// readWebhookBody returns the exact bytes the provider signed.
func readWebhookBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		return nil, derror.Wrap(derror.CodeValidation, err, "unreadable webhook body")
	}
	if len(body) == 0 {
		return nil, derror.New(derror.CodeValidation, "empty webhook body")
	}
	return body, nil
}

// paymentsWebhook is the generic endpoint: the sender is decided by its
// signature header and dispatched to the matching verifier.
func (s *Server) paymentsWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := readWebhookBody(w, r)
	if err != nil {
		api.WriteError(w, r, s.log, err)
		return
	}

	c := usecase.ClassifyWebhook(r.Header, body)
	res, err := s.deps.Webhooks.HandleClassified(r.Context(), c, body)
	if err != nil {
		api.WriteError(w, r, s.log, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, webhookResponse{Received: true, Outcome: res.Outcome, EventID: res.EventID})
}

func (s *Server) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	sig := r.Header.Get(usecase.HeaderStripeSignature)
	if sig == "" {
		api.WriteError(w, r, s.log, derror.New(derror.CodeInvalidSignature, "stripe signature missing"))
		return
	}
	body, err := readWebhookBody(w, r)
	if err != nil {
		api.WriteError(w, r, s.log, err)
		return
	}

	res, err := s.deps.Webhooks.Handle(r.Context(), model.ProviderStripe, body, sig)
	if err != nil {
		api.WriteError(w, r, s.log, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, webhookResponse{Received: true, Outcome: res.Outcome, EventID: res.EventID})
}

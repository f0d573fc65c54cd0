// Package apiv1 serves the public billing API: checkout, order status,
// provider webhooks, the credits endpoints and the cron trigger.
package apiv1

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	ucport "ai-image-billing/internal/domain/ports/usecase"
	"ai-image-billing/internal/infra/adapters/payment"
	"ai-image-billing/internal/infra/api"
	"ai-image-billing/internal/infra/web"
	"ai-image-billing/internal/usecase"
)

// Sweeper runs one expiry sweep and reports it.
type Sweeper interface {
	RunOnce(ctx context.Context) (*ucport.SweepReport, error)
}

// Deps lists what the handlers call into. Fake is nil unless the local fake
// provider is enabled.
type Deps struct {
	Checkout   usecase.CheckoutUseCase
	Orders     usecase.OrderUseCase
	Credits    usecase.CreditUseCase
	Webhooks   usecase.WebhookUseCase
	Sweeper    Sweeper
	Auth       *web.AuthManager
	Fake       *payment.FakeGateway
	CronSecret string
}

type Server struct {
	deps Deps
	log  *zerolog.Logger
}

func NewServer(deps Deps, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "APIv1").Logger()
	return &Server{deps: deps, log: &l}
}

// RegisterAPIV1 mounts every public route on r.
func RegisterAPIV1(r chi.Router, s *Server) {
	r.Group(func(r chi.Router) {
		r.Use(s.deps.Auth.RequireUser(s.log))

		r.Post("/api/payment/create-session", s.createSession)
		r.Get("/api/payment/orders", s.listOrders)
		r.Get("/api/payment/orders/{id}", s.getOrder)

		r.Get("/api/user/credits", s.getCredits)
		r.Post("/api/user/credits", s.consumeCredits)
		r.Post("/api/user/credits/consume", s.consumeCredits)
	})

	r.Post("/api/webhooks/payments", s.paymentsWebhook)
	r.Post("/api/webhooks/stripe", s.stripeWebhook)

	r.Post("/api/cron/expire-orders", s.expireOrders)

	r.Get(api.ResultPagePath, api.ResultPage("/api/payment/orders/"))
	if s.deps.Fake != nil {
		r.Get(payment.FakeCheckoutPath, s.fakeCheckout)
	}
}

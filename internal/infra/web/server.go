package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"ai-image-billing/internal/config"
	"ai-image-billing/internal/usecase"
)

// Server hosts the admin API. Every route requires a session whose email is
// on the admin allowlist.
type Server struct {
	configUC usecase.PaymentConfigUseCase
	orderUC  usecase.OrderUseCase
	gateways usecase.Gateways
	auth     *AuthManager
	admins   config.AdminConfig
	dev      bool
	log      *zerolog.Logger
}

func NewServer(
	configUC usecase.PaymentConfigUseCase,
	orderUC usecase.OrderUseCase,
	gateways usecase.Gateways,
	auth *AuthManager,
	admins config.AdminConfig,
	dev bool,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "AdminAPI").Logger()
	return &Server{
		configUC: configUC,
		orderUC:  orderUC,
		gateways: gateways,
		auth:     auth,
		admins:   admins,
		dev:      dev,
		log:      &l,
	}
}

// RegisterRoutes sets up the routing for the admin API.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(s.auth.RequireUser(s.log), RequireAdmin(s.admins, s.dev, s.log))

		r.Get("/payment-config", paymentConfigGetHandler(s.configUC, s.gateways, s.log))
		r.Post("/payment-config", paymentConfigPostHandler(s.configUC, s.log))
		r.Get("/orders/stats", orderStatsHandler(s.orderUC, s.log))
	})
}

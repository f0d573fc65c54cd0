package main

import (
	"errors"

	"github.com/rs/zerolog"

	"ai-image-billing/internal/config"
	"ai-image-billing/internal/domain/ports/adapter"
	"ai-image-billing/internal/infra/adapters/payment"
	"ai-image-billing/internal/infra/pricing"
	"ai-image-billing/internal/infra/telegram"
	"ai-image-billing/internal/infra/worker"
	"ai-image-billing/internal/usecase"
)

// newGateways registers every provider that has credentials. With
// payment.fake the local fake takes creem's place.
func newGateways(cfg *config.Config) (usecase.Gateways, *payment.FakeGateway, error) {
	var gws []adapter.PaymentGateway
	if cfg.Payment.Stripe.SecretKey != "" {
		stripeGW, err := payment.NewStripeGateway(cfg.Payment.Stripe)
		if err != nil {
			return nil, nil, err
		}
		gws = append(gws, stripeGW)
	}

	var fake *payment.FakeGateway
	switch {
	case cfg.Payment.Fake:
		if !cfg.Runtime.Dev || cfg.Payment.FakeSecret == "" {
			return nil, nil, errors.New("fake payment provider requires developer mode and a secret")
		}
		fake = payment.NewFakeGateway(cfg.HTTP.PublicBaseURL, cfg.Payment.FakeSecret)
		gws = append(gws, fake)
	case cfg.Payment.Creem.APIKey != "":
		creemGW, err := payment.NewCreemGateway(cfg.Payment.Creem, cfg.Payment.ProviderTimeout)
		if err != nil {
			return nil, nil, err
		}
		gws = append(gws, creemGW)
	}
	return usecase.NewGateways(gws...), fake, nil
}

func newPriceTable(cfg config.PricingConfig) (*pricing.Catalog, error) {
	return pricing.NewCatalogFromDir(cfg.Dir, cfg.DefaultLocale)
}

// newNotifier falls back to log-only alerts when telegram is not configured.
func newNotifier(cfg config.AlertsConfig, pool *worker.Pool, logger *zerolog.Logger) adapter.Notifier {
	if cfg.TelegramToken == "" || len(cfg.ChatIDs) == 0 {
		return telegram.NewNoopNotifier(logger)
	}
	n, err := telegram.NewAlertNotifier(cfg, pool, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram alerts disabled")
		return telegram.NewNoopNotifier(logger)
	}
	return n
}

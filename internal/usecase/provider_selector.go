// File: internal/usecase/provider_selector.go
package usecase

import (
	"strings"

	"ai-image-billing/internal/domain/model"
)

// SelectionInput carries the per-request routing hints. Zero values mean
// "not supplied".
type SelectionInput struct {
	UserLocation   string         // ISO country code
	Amount         int64          // minor units
	UserPreference model.Provider // explicit user choice
}

// SelectProvider decides which provider hosts a checkout. It is a pure
// function of its arguments; ProviderNone means no payment can be accepted.
//
// Rules, first match wins:
//  1. maintenance mode: none
//  2. forced provider, even when disabled (admin break-glass)
//  3. user preference when choice is allowed and the provider is enabled
//  4. China-only Creem for CN users
//  5. large-amount provider at or above the threshold
//  6. Stripe for international users when preferred
//  7. the default provider
//  8. any enabled provider, Stripe first
func SelectProvider(cfg model.PaymentConfig, in SelectionInput) model.Provider {
	if cfg.MaintenanceMode {
		return model.ProviderNone
	}
	if cfg.ForceProvider != model.ProviderNone {
		return cfg.ForceProvider
	}

	if in.UserPreference.Valid() && cfg.AllowUserChoice && cfg.IsEnabled(in.UserPreference) {
		return in.UserPreference
	}

	isCN := strings.EqualFold(strings.TrimSpace(in.UserLocation), "CN")
	if cfg.ChinaOnlyCreem && isCN && cfg.CreemEnabled {
		return model.ProviderCreem
	}

	if cfg.LargeAmountThreshold > 0 && in.Amount >= cfg.LargeAmountThreshold &&
		cfg.IsEnabled(cfg.LargeAmountProvider) {
		return cfg.LargeAmountProvider
	}

	if cfg.InternationalPreferStripe && !isCN && cfg.StripeEnabled {
		return model.ProviderStripe
	}

	if cfg.IsEnabled(cfg.DefaultProvider) {
		return cfg.DefaultProvider
	}

	if enabled := cfg.EnabledProviders(); len(enabled) > 0 {
		return enabled[0]
	}
	return model.ProviderNone
}

package model

import "time"

// PaymentConfig is one version of the admin-controlled routing policy.
// Versions are appended; the latest CreatedAt wins.
type PaymentConfig struct {
	ID                        string    `json:"id"`
	StripeEnabled             bool      `json:"stripe_enabled"`
	CreemEnabled              bool      `json:"creem_enabled"`
	DefaultProvider           Provider  `json:"default_provider"`
	ForceProvider             Provider  `json:"force_provider,omitempty"`
	MaintenanceMode           bool      `json:"maintenance_mode"`
	AllowUserChoice           bool      `json:"allow_user_choice"`
	ChinaOnlyCreem            bool      `json:"china_only_creem"`
	InternationalPreferStripe bool      `json:"international_prefer_stripe"`
	LargeAmountThreshold      int64     `json:"large_amount_threshold"` // minor units; 0 disables the rule
	LargeAmountProvider       Provider  `json:"large_amount_provider,omitempty"`
	UpdatedBy                 string    `json:"updated_by,omitempty"`
	CreatedAt                 time.Time `json:"created_at"`
}

func (c PaymentConfig) IsEnabled(p Provider) bool {
	switch p {
	case ProviderStripe:
		return c.StripeEnabled
	case ProviderCreem:
		return c.CreemEnabled
	}
	return false
}

// EnabledProviders lists enabled providers, stripe first.
func (c PaymentConfig) EnabledProviders() []Provider {
	out := make([]Provider, 0, 2)
	if c.StripeEnabled {
		out = append(out, ProviderStripe)
	}
	if c.CreemEnabled {
		out = append(out, ProviderCreem)
	}
	return out
}

// PaymentConfigPatch is the partial update accepted by the admin "update" action.
type PaymentConfigPatch struct {
	StripeEnabled             *bool     `json:"stripe_enabled,omitempty"`
	CreemEnabled              *bool     `json:"creem_enabled,omitempty"`
	DefaultProvider           *Provider `json:"default_provider,omitempty"`
	ForceProvider             *Provider `json:"force_provider,omitempty"`
	AllowUserChoice           *bool     `json:"allow_user_choice,omitempty"`
	ChinaOnlyCreem            *bool     `json:"china_only_creem,omitempty"`
	InternationalPreferStripe *bool     `json:"international_prefer_stripe,omitempty"`
	LargeAmountThreshold      *int64    `json:"large_amount_threshold,omitempty"`
	LargeAmountProvider       *Provider `json:"large_amount_provider,omitempty"`
}

// Apply returns a copy of c with the non-nil fields of p set.
func (c PaymentConfig) Apply(p PaymentConfigPatch) PaymentConfig {
	if p.StripeEnabled != nil {
		c.StripeEnabled = *p.StripeEnabled
	}
	if p.CreemEnabled != nil {
		c.CreemEnabled = *p.CreemEnabled
	}
	if p.DefaultProvider != nil {
		c.DefaultProvider = *p.DefaultProvider
	}
	if p.ForceProvider != nil {
		c.ForceProvider = *p.ForceProvider
	}
	if p.AllowUserChoice != nil {
		c.AllowUserChoice = *p.AllowUserChoice
	}
	if p.ChinaOnlyCreem != nil {
		c.ChinaOnlyCreem = *p.ChinaOnlyCreem
	}
	if p.InternationalPreferStripe != nil {
		c.InternationalPreferStripe = *p.InternationalPreferStripe
	}
	if p.LargeAmountThreshold != nil {
		c.LargeAmountThreshold = *p.LargeAmountThreshold
	}
	if p.LargeAmountProvider != nil {
		c.LargeAmountProvider = *p.LargeAmountProvider
	}
	return c
}

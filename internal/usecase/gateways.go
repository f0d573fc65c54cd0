// File: internal/usecase/gateways.go
package usecase

import (
	"ai-image-billing/internal/domain/model"
	"ai-image-billing/internal/domain/ports/adapter"
)

// Gateways holds the payment providers that have credentials configured.
type Gateways map[model.Provider]adapter.PaymentGateway

func NewGateways(gws ...adapter.PaymentGateway) Gateways {
	out := make(Gateways, len(gws))
	for _, gw := range gws {
		if gw != nil {
			out[gw.Name()] = gw
		}
	}
	return out
}

func (g Gateways) Get(p model.Provider) (adapter.PaymentGateway, bool) {
	gw, ok := g[p]
	return gw, ok
}

// Configured lists registered providers, stripe first.
func (g Gateways) Configured() []model.Provider {
	out := make([]model.Provider, 0, 2)
	for _, p := range []model.Provider{model.ProviderStripe, model.ProviderCreem} {
		if _, ok := g[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

package web

import (
	"net/http"
	"sort"

	"github.com/oapi-codegen/runtime"
	"github.com/rs/zerolog"

	"ai-image-billing/internal/domain/model"
	derror "ai-image-billing/internal/error"
	"ai-image-billing/internal/infra/api"
	"ai-image-billing/internal/usecase"
)

const maxHistory = 100

type providerStatus struct {
	Configured bool `json:"configured"` // credentials present in this deployment
	Enabled    bool `json:"enabled"`    // switched on in the current config version
}

type paymentConfigResponse struct {
	Success   bool                              `json:"success"`
	Config    *model.PaymentConfig              `json:"config"`
	Providers map[model.Provider]providerStatus `json:"providers"`
	History   []*model.PaymentConfig            `json:"history,omitempty"`
}

// paymentConfigGetHandler serves the current version, provider availability
// and, with ?history=N, the N most recent versions.
func paymentConfigGetHandler(configUC usecase.PaymentConfigUseCase, gateways usecase.Gateways, log *zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var history *int
		if err := runtime.BindQueryParameter("form", true, false, "history", r.URL.Query(), &history); err != nil {
			api.WriteError(w, r, log, derror.Wrap(derror.CodeValidation, err, "history must be an integer"))
			return
		}
		if history != nil && (*history < 0 || *history > maxHistory) {
			api.WriteError(w, r, log, derror.Newf(derror.CodeValidation, "history must be between 0 and %d", maxHistory))
			return
		}

		cfg, err := configUC.Current(ctx)
		if err != nil {
			api.WriteError(w, r, log, err)
			return
		}

		resp := paymentConfigResponse{
			Success:   true,
			Config:    cfg,
			Providers: providerAvailability(cfg, gateways),
		}
		if history != nil && *history > 0 {
			resp.History, err = configUC.History(ctx, *history)
			if err != nil {
				api.WriteError(w, r, log, err)
				return
			}
		}
		api.WriteJSON(w, http.StatusOK, resp)
	}
}

func providerAvailability(cfg *model.PaymentConfig, gateways usecase.Gateways) map[model.Provider]providerStatus {
	out := map[model.Provider]providerStatus{
		model.ProviderStripe: {Enabled: cfg.StripeEnabled},
		model.ProviderCreem:  {Enabled: cfg.CreemEnabled},
	}
	for _, p := range gateways.Configured() {
		st := out[p]
		st.Configured = true
		out[p] = st
	}
	return out
}

type paymentConfigChangeRequest struct {
	Action   string                   `json:"action" validate:"required,oneof=update switch maintenance_on maintenance_off"`
	Provider string                   `json:"provider,omitempty" validate:"required_if=Action switch"`
	Patch    model.PaymentConfigPatch `json:"patch"`
}

type paymentConfigChangeResponse struct {
	Success bool                 `json:"success"`
	Config  *model.PaymentConfig `json:"config"`
}

// paymentConfigPostHandler appends a new config version for one admin action.
func paymentConfigPostHandler(configUC usecase.PaymentConfigUseCase, log *zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req paymentConfigChangeRequest
		if err := api.DecodeJSON(w, r, &req); err != nil {
			api.WriteError(w, r, log, err)
			return
		}

		change := usecase.ConfigChange{
			Action:   usecase.ConfigAction(req.Action),
			Patch:    req.Patch,
			Provider: model.Provider(req.Provider),
		}
		admin := SessionUserFrom(ctx)
		cfg, err := configUC.Apply(ctx, change, admin.Email)
		if err != nil {
			api.WriteError(w, r, log, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, paymentConfigChangeResponse{Success: true, Config: cfg})
	}
}

type revenueLine struct {
	Currency    string `json:"currency"`
	AmountMinor int64  `json:"amount_minor"`
	Amount      string `json:"amount"` // major units, e.g. "19.99"
}

type orderStatsResponse struct {
	Success bool                        `json:"success"`
	Counts  map[model.OrderStatus]int64 `json:"counts"`
	Total   int64                       `json:"total"`
	Revenue []revenueLine               `json:"revenue"`
}

// orderStatsHandler reports order counts by status and completed revenue by currency.
func orderStatsHandler(orderUC usecase.OrderUseCase, log *zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := orderUC.Stats(r.Context())
		if err != nil {
			api.WriteError(w, r, log, err)
			return
		}

		resp := orderStatsResponse{
			Success: true,
			Counts:  map[model.OrderStatus]int64{},
			Revenue: []revenueLine{},
		}
		for status, n := range stats.CountByStatus {
			resp.Counts[status] = n
			resp.Total += n
		}
		for currency, amount := range stats.RevenueByCurrency {
			exp := model.MinorUnitExponent(currency)
			resp.Revenue = append(resp.Revenue, revenueLine{
				Currency:    currency,
				AmountMinor: amount,
				Amount:      model.DisplayAmount(amount, currency).StringFixed(exp),
			})
		}
		sort.Slice(resp.Revenue, func(i, j int) bool { return resp.Revenue[i].Currency < resp.Revenue[j].Currency })

		api.WriteJSON(w, http.StatusOK, resp)
	}
}

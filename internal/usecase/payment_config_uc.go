// File: internal/usecase/payment_config_uc.go
package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"ai-image-billing/internal/domain"
	"ai-image-billing/internal/domain/model"
	"ai-image-billing/internal/domain/ports/repository"
	derror "ai-image-billing/internal/error"
	"ai-image-billing/internal/infra/logging"
	"ai-image-billing/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Compile-time check
var _ PaymentConfigUseCase = (*paymentConfigUC)(nil)

type ConfigAction string

const (
	ConfigActionUpdate         ConfigAction = "update"
	ConfigActionSwitch         ConfigAction = "switch"
	ConfigActionMaintenanceOn  ConfigAction = "maintenance_on"
	ConfigActionMaintenanceOff ConfigAction = "maintenance_off"
)

// ConfigChange is the payload of an admin action. Patch is read by "update",
// Provider by "switch".
type ConfigChange struct {
	Action   ConfigAction
	Patch    model.PaymentConfigPatch
	Provider model.Provider
}

type PaymentConfigUseCase interface {
	// Current returns the latest version, bootstrapping one from defaults on
	// an empty table.
	Current(ctx context.Context) (*model.PaymentConfig, error)
	Apply(ctx context.Context, change ConfigChange, adminEmail string) (*model.PaymentConfig, error)
	History(ctx context.Context, limit int) ([]*model.PaymentConfig, error)
}

type paymentConfigUC struct {
	repo     repository.PaymentConfigRepository
	defaults model.PaymentConfig
	log      *zerolog.Logger
}

func NewPaymentConfigUseCase(repo repository.PaymentConfigRepository, defaults model.PaymentConfig, logger *zerolog.Logger) *paymentConfigUC {
	l := logger.With().Str("component", "PaymentConfigUC").Logger()
	return &paymentConfigUC{repo: repo, defaults: defaults, log: &l}
}

func (u *paymentConfigUC) Current(ctx context.Context) (*model.PaymentConfig, error) {
	cfg, err := u.repo.Latest(ctx, repository.NoTX)
	if err == nil && cfg != nil {
		return cfg, nil
	}
	if err != nil && !errors.Is(err, domain.ErrNoPaymentConfig) {
		return nil, err
	}

	first := u.defaults
	first.ID = uuid.NewString()
	first.CreatedAt = time.Now()
	if first.UpdatedBy == "" {
		first.UpdatedBy = "bootstrap"
	}
	if err := u.repo.Append(ctx, repository.NoTX, &first); err != nil {
		return nil, err
	}
	u.log.Info().Str("default_provider", string(first.DefaultProvider)).Msg("bootstrapped payment config")
	return &first, nil
}

func (u *paymentConfigUC) Apply(ctx context.Context, change ConfigChange, adminEmail string) (*model.PaymentConfig, error) {
	defer logging.TraceDuration(u.log, "PaymentConfigUC.Apply")()

	adminEmail = strings.ToLower(strings.TrimSpace(adminEmail))
	if adminEmail == "" {
		return nil, derror.New(derror.CodeUnauthorized, "authentication required")
	}

	cur, err := u.Current(ctx)
	if err != nil {
		return nil, err
	}

	next := *cur
	switch change.Action {
	case ConfigActionUpdate:
		if err := validatePatch(change.Patch); err != nil {
			return nil, err
		}
		next = cur.Apply(change.Patch)
	case ConfigActionSwitch:
		if !change.Provider.Valid() {
			return nil, derror.New(derror.CodeUnsupportedProvider, "switch requires provider stripe or creem")
		}
		// switching makes the target the enabled default and lifts any force
		next.DefaultProvider = change.Provider
		next.ForceProvider = model.ProviderNone
		switch change.Provider {
		case model.ProviderStripe:
			next.StripeEnabled = true
		case model.ProviderCreem:
			next.CreemEnabled = true
		}
	case ConfigActionMaintenanceOn:
		next.MaintenanceMode = true
	case ConfigActionMaintenanceOff:
		next.MaintenanceMode = false
	default:
		return nil, derror.Newf(derror.CodeValidation, "unknown action %q", change.Action)
	}

	next.ID = uuid.NewString()
	next.UpdatedBy = adminEmail
	next.CreatedAt = time.Now()
	if !next.CreatedAt.After(cur.CreatedAt) {
		// keep versions strictly ordered even on coarse clocks
		next.CreatedAt = cur.CreatedAt.Add(time.Microsecond)
	}

	if err := u.repo.Append(ctx, repository.NoTX, &next); err != nil {
		metrics.IncPaymentConfigChange(string(change.Action) + "_error")
		return nil, err
	}
	metrics.IncPaymentConfigChange(string(change.Action))

	u.log.Info().
		Str("action", string(change.Action)).
		Str("admin", adminEmail).
		Str("default_provider", string(next.DefaultProvider)).
		Str("force_provider", string(next.ForceProvider)).
		Bool("maintenance", next.MaintenanceMode).
		Msg("payment config changed")
	return &next, nil
}

func (u *paymentConfigUC) History(ctx context.Context, limit int) ([]*model.PaymentConfig, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return u.repo.History(ctx, repository.NoTX, limit)
}

func validatePatch(p model.PaymentConfigPatch) error {
	if p.DefaultProvider != nil && !p.DefaultProvider.Valid() {
		return derror.New(derror.CodeUnsupportedProvider, "default_provider must be stripe or creem")
	}
	// force and large-amount providers may be cleared with ""
	if p.ForceProvider != nil && *p.ForceProvider != model.ProviderNone && !p.ForceProvider.Valid() {
		return derror.New(derror.CodeUnsupportedProvider, "force_provider must be stripe, creem or empty")
	}
	if p.LargeAmountProvider != nil && *p.LargeAmountProvider != model.ProviderNone && !p.LargeAmountProvider.Valid() {
		return derror.New(derror.CodeUnsupportedProvider, "large_amount_provider must be stripe, creem or empty")
	}
	if p.LargeAmountThreshold != nil && *p.LargeAmountThreshold < 0 {
		return derror.New(derror.CodeValidation, "large_amount_threshold must not be negative")
	}
	return nil
}

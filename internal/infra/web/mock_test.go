//go:build !integration

package web

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"ai-image-billing/internal/domain/model"
	"ai-image-billing/internal/domain/ports/adapter"
	ucport "ai-image-billing/internal/domain/ports/usecase"
	"ai-image-billing/internal/usecase"
)

// newTestLogger creates a silent logger for tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

// --- Mock Use Cases ---

type mockPaymentConfigUC struct {
	CurrentFunc func(ctx context.Context) (*model.PaymentConfig, error)
	ApplyFunc   func(ctx context.Context, change usecase.ConfigChange, adminEmail string) (*model.PaymentConfig, error)
	HistoryFunc func(ctx context.Context, limit int) ([]*model.PaymentConfig, error)
}

func (m *mockPaymentConfigUC) Current(ctx context.Context) (*model.PaymentConfig, error) {
	if m.CurrentFunc != nil {
		return m.CurrentFunc(ctx)
	}
	return &model.PaymentConfig{ID: "cfg-1", CreemEnabled: true, DefaultProvider: model.ProviderCreem}, nil
}

func (m *mockPaymentConfigUC) Apply(ctx context.Context, change usecase.ConfigChange, adminEmail string) (*model.PaymentConfig, error) {
	if m.ApplyFunc != nil {
		return m.ApplyFunc(ctx, change, adminEmail)
	}
	return &model.PaymentConfig{ID: "cfg-2", UpdatedBy: adminEmail}, nil
}

func (m *mockPaymentConfigUC) History(ctx context.Context, limit int) ([]*model.PaymentConfig, error) {
	if m.HistoryFunc != nil {
		return m.HistoryFunc(ctx, limit)
	}
	return nil, nil
}

type mockOrderUC struct {
	GetFunc           func(ctx context.Context, userID, orderID string) (*model.Order, error)
	ListByUserFunc    func(ctx context.Context, userID string, limit, offset int) ([]*model.Order, error)
	StatsFunc         func(ctx context.Context) (*model.OrderStats, error)
	ExpireOverdueFunc func(ctx context.Context, now time.Time) (*ucport.SweepReport, error)
}

func (m *mockOrderUC) Get(ctx context.Context, userID, orderID string) (*model.Order, error) {
	return m.GetFunc(ctx, userID, orderID)
}

func (m *mockOrderUC) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*model.Order, error) {
	return m.ListByUserFunc(ctx, userID, limit, offset)
}

func (m *mockOrderUC) Stats(ctx context.Context) (*model.OrderStats, error) {
	return m.StatsFunc(ctx)
}

func (m *mockOrderUC) ExpireOverdue(ctx context.Context, now time.Time) (*ucport.SweepReport, error) {
	return m.ExpireOverdueFunc(ctx, now)
}

// --- Mock Gateway ---

type mockGateway struct {
	provider model.Provider
}

func (g *mockGateway) Name() model.Provider { return g.provider }
func (g *mockGateway) PublicKey() string    { return "" }
func (g *mockGateway) CreateCheckout(ctx context.Context, req adapter.CheckoutRequest) (*adapter.CheckoutSession, error) {
	return &adapter.CheckoutSession{URL: "https://pay.example/x", ExternalID: "x"}, nil
}
func (g *mockGateway) ParseWebhook(payload []byte, signatureHeader string) (*adapter.WebhookEvent, error) {
	return nil, nil
}

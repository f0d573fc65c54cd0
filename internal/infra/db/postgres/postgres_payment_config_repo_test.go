//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"ai-image-billing/internal/domain"
	"ai-image-billing/internal/domain/model"
)

func TestPaymentConfigRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	ctx := context.Background()
	repo := NewPaymentConfigRepo(testPool)

	t.Run("should report an empty table", func(t *testing.T) {
		cleanup(t)
		if _, err := repo.Latest(ctx, nil); !errors.Is(err, domain.ErrNoPaymentConfig) {
			t.Fatalf("expected ErrNoPaymentConfig, got %v", err)
		}
	})

	t.Run("should return the newest version", func(t *testing.T) {
		cleanup(t)
		base := time.Now().Add(-time.Minute)
		v1 := &model.PaymentConfig{CreemEnabled: true, DefaultProvider: model.ProviderCreem, CreatedAt: base}
		v2 := &model.PaymentConfig{StripeEnabled: true, CreemEnabled: true, DefaultProvider: model.ProviderStripe,
			LargeAmountThreshold: 50000, LargeAmountProvider: model.ProviderStripe, CreatedAt: base.Add(time.Second)}
		for _, v := range []*model.PaymentConfig{v1, v2} {
			if err := repo.Append(ctx, nil, v); err != nil {
				t.Fatalf("Append failed: %v", err)
			}
		}

		latest, err := repo.Latest(ctx, nil)
		if err != nil {
			t.Fatalf("Latest failed: %v", err)
		}
		if latest.ID != v2.ID || latest.LargeAmountProvider != model.ProviderStripe || latest.ForceProvider != model.ProviderNone {
			t.Errorf("unexpected latest config: %+v", latest)
		}
		history, _ := repo.History(ctx, nil, 10)
		if len(history) != 2 || history[1].ID != v1.ID {
			t.Errorf("expected history newest first, got %d entries", len(history))
		}
	})
}

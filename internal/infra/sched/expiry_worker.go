package sched

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ai-image-billing/internal/domain/model"
	"ai-image-billing/internal/domain/ports/adapter"
	ucport "ai-image-billing/internal/domain/ports/usecase"
)

// ExpiryWorker runs the pending-order sweep and reports the outcome to
// operators. RunOnce serves the cron endpoint and the one-shot binary; Run
// repeats it on a ticker for single-instance deployments.
type ExpiryWorker struct {
	interval time.Duration
	sweeper  ucport.OrderSweeper
	notifier adapter.Notifier
	log      *zerolog.Logger
	now      func() time.Time
}

func NewExpiryWorker(interval time.Duration, sweeper ucport.OrderSweeper, notifier adapter.Notifier, logger *zerolog.Logger) *ExpiryWorker {
	exprLog := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{
		interval: interval,
		sweeper:  sweeper,
		notifier: notifier,
		log:      &exprLog,
		now:      time.Now,
	}
}

// RunOnce expires overdue pending orders and alerts when anything changed.
func (w *ExpiryWorker) RunOnce(ctx context.Context) (*ucport.SweepReport, error) {
	rep, err := w.sweeper.ExpireOverdue(ctx, w.now())
	if err != nil {
		w.log.Error().Err(err).Msg("expiry sweep failed")
		return rep, err
	}
	if rep.Skipped {
		w.log.Info().Msg("expiry sweep skipped, another run holds the lock")
		return rep, nil
	}

	w.log.Info().Int("expired", rep.Expired).Msg("expiry sweep finished")
	if rep.Expired > 0 && w.notifier != nil {
		if nerr := w.notifier.Notify(ctx, FormatSweepReport(rep)); nerr != nil {
			w.log.Warn().Err(nerr).Msg("sweep report alert failed")
		}
	}
	return rep, nil
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	if w.interval <= 0 {
		return errors.New("expiry worker interval must be positive")
	}
	w.log.Info().Dur("interval", w.interval).Msg("Starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			// errors are logged by RunOnce; the next tick retries
			_, _ = w.RunOnce(ctx)
		}
	}
}

// FormatSweepReport renders a report as a short operator message.
func FormatSweepReport(rep *ucport.SweepReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Order expiry sweep: %d pending order(s) expired.", rep.Expired)
	if rep.Stats == nil {
		return b.String()
	}

	statuses := make([]string, 0, len(rep.Stats.CountByStatus))
	for s := range rep.Stats.CountByStatus {
		statuses = append(statuses, string(s))
	}
	sort.Strings(statuses)
	b.WriteString("\nOrders by status:")
	for _, s := range statuses {
		fmt.Fprintf(&b, "\n  %s: %d", s, rep.Stats.CountByStatus[model.OrderStatus(s)])
	}

	if len(rep.Stats.RevenueByCurrency) > 0 {
		currencies := make([]string, 0, len(rep.Stats.RevenueByCurrency))
		for c := range rep.Stats.RevenueByCurrency {
			currencies = append(currencies, c)
		}
		sort.Strings(currencies)
		b.WriteString("\nCompleted revenue:")
		for _, c := range currencies {
			fmt.Fprintf(&b, "\n  %s", model.FormatAmount(rep.Stats.RevenueByCurrency[c], c))
		}
	}
	return b.String()
}

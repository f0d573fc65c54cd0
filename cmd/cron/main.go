package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"ai-image-billing/internal/config"
	"ai-image-billing/internal/domain/ports/adapter"
	pg "ai-image-billing/internal/infra/db/postgres"
	"ai-image-billing/internal/infra/logging"
	red "ai-image-billing/internal/infra/redis"
	"ai-image-billing/internal/infra/sched"
	"ai-image-billing/internal/infra/telegram"
	"ai-image-billing/internal/usecase"
)

// cron runs a single expiry sweep and exits. Schedule it externally (system
// cron, Kubernetes CronJob) when the API replicas do not run the sweep.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, false)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()

	var notifier adapter.Notifier = telegram.NewNoopNotifier(logger)
	if n, err := telegram.NewAlertNotifier(cfg.Alerts, nil, logger); err == nil {
		notifier = n
	} else {
		logger.Debug().Err(err).Msg("telegram alerts disabled")
	}

	orderUC := usecase.NewOrderUseCase(pg.NewOrderRepo(pool), red.NewLocker(redisClient),
		cfg.Cron.SweepBatchSize, cfg.Cron.LockTTL, logger)
	w := sched.NewExpiryWorker(0, orderUC, notifier, logger)

	rep, err := w.RunOnce(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("expiry sweep failed")
		os.Exit(1)
	}
	logger.Info().Int("expired", rep.Expired).Bool("skipped", rep.Skipped).Msg("expiry sweep done")
}

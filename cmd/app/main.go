// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"ai-image-billing/internal/config"
	"ai-image-billing/internal/infra/api/apiv1"
	pg "ai-image-billing/internal/infra/db/postgres"
	"ai-image-billing/internal/infra/logging"
	"ai-image-billing/internal/infra/metrics"
	red "ai-image-billing/internal/infra/redis"
	"ai-image-billing/internal/infra/sched"
	"ai-image-billing/internal/infra/web"
	"ai-image-billing/internal/infra/worker"
	"ai-image-billing/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

// webhookDedupTTL outlives every provider's retry window.
const webhookDedupTTL = 24 * time.Hour

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, unredacted emails)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()

	guard, err := red.NewEventGuard(redisClient, webhookDedupTTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("webhook guard")
	}

	// ---- Alerts ----
	alertPool := worker.NewPool(cfg.Alerts.Workers, logger)
	alertPool.Start(ctx)
	defer alertPool.Stop()
	notifier := newNotifier(cfg.Alerts, alertPool, logger)

	// ---- Repositories ----
	userRepo := pg.NewUserRepo(pool)
	orderRepo := pg.NewOrderRepo(pool)
	creditRepo := pg.NewCreditRepo(pool)
	configRepo := pg.NewPaymentConfigRepoCacheDecorator(pg.NewPaymentConfigRepo(pool), redisClient, logger)
	txManager := pg.NewTxManager(pool)

	// ---- Providers ----
	gateways, fake, err := newGateways(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("payment gateways")
	}
	for _, p := range gateways.Configured() {
		logger.Info().Str("provider", string(p)).Bool("fake", fake != nil).Msg("payment provider registered")
	}
	prices, err := newPriceTable(cfg.Pricing)
	if err != nil {
		logger.Fatal().Err(err).Msg("price table")
	}

	// ---- Use cases ----
	configUC := usecase.NewPaymentConfigUseCase(configRepo, cfg.InitialPaymentConfig(), logger)
	checkoutUC := usecase.NewCheckoutUseCase(userRepo, orderRepo, configUC, prices, gateways, notifier,
		cfg.HTTP.PublicBaseURL, cfg.Payment.ProviderTimeout, logger)
	creditUC := usecase.NewCreditUseCase(userRepo, creditRepo, txManager, red.NewRateLimiter(redisClient),
		cfg.Limits.ConsumePerMinute, logger)
	orderUC := usecase.NewOrderUseCase(orderRepo, red.NewLocker(redisClient), cfg.Cron.SweepBatchSize, cfg.Cron.LockTTL, logger)
	webhookUC := usecase.NewWebhookUseCase(orderRepo, creditUC, txManager, gateways, guard, notifier, logger)

	expiry := sched.NewExpiryWorker(cfg.Cron.ExpiryInterval, orderUC, notifier, logger)

	// ---- HTTP ----
	auth := web.NewAuthManager(cfg.Session)
	public := apiv1.NewServer(apiv1.Deps{
		Checkout:   checkoutUC,
		Orders:     orderUC,
		Credits:    creditUC,
		Webhooks:   webhookUC,
		Sweeper:    expiry,
		Auth:       auth,
		Fake:       fake,
		CronSecret: cfg.Cron.Secret,
	}, logger)
	admin := web.NewServer(configUC, orderUC, gateways, auth, cfg.Admin, cfg.Runtime.Dev, logger)

	handler := apiv1.NewRouter(public, admin, apiv1.RouterOptions{
		RequestTimeout: cfg.HTTP.RequestTimeout,
		Health:         map[string]apiv1.Pinger{"postgres": pool, "redis": redisClient},
		BeforeScrape: func() {
			st := pool.Stat()
			metrics.SetDBPoolStats(st.TotalConns(), st.IdleConns(), st.AcquiredConns())
		},
	}, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Str("version", version).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutdown requested")
		sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(sctx)
	})
	if cfg.Cron.ExpiryInterval > 0 {
		g.Go(func() error {
			err := expiry.Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("stopped with error")
		os.Exit(1)
	}
	logger.Info().Msg("bye")
}

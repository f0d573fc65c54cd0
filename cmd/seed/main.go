package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"ai-image-billing/internal/config"
	"ai-image-billing/internal/domain/model"
	"ai-image-billing/internal/domain/ports/repository"
	pg "ai-image-billing/internal/infra/db/postgres"
	"ai-image-billing/internal/infra/logging"
	"ai-image-billing/internal/infra/web"
	"ai-image-billing/internal/usecase"
)

// seed prepares a local environment: it stores the first payment config
// version, creates (or finds) a user, optionally grants bonus credits and
// prints a session token for calling the API with curl.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	email := flag.String("email", "dev@example.com", "user to create or reuse")
	bonus := flag.Int64("bonus", 0, "bonus credits to grant once")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	userRepo := pg.NewUserRepo(pool)
	configUC := usecase.NewPaymentConfigUseCase(pg.NewPaymentConfigRepo(pool), cfg.InitialPaymentConfig(), logger)
	creditUC := usecase.NewCreditUseCase(userRepo, pg.NewCreditRepo(pool), pg.NewTxManager(pool), nil, 0, logger)

	pc, err := configUC.Current(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("payment config")
	}
	fmt.Printf("payment config %s: stripe=%t creem=%t default=%s maintenance=%t\n",
		pc.ID, pc.StripeEnabled, pc.CreemEnabled, pc.DefaultProvider, pc.MaintenanceMode)

	addr := strings.ToLower(strings.TrimSpace(*email))
	user, err := userRepo.FindByEmail(ctx, repository.NoTX, addr)
	if err != nil {
		logger.Fatal().Err(err).Msg("find user")
	}
	if user == nil {
		now := time.Now()
		user = &model.User{ID: uuid.NewString(), Email: addr, CreatedAt: now, UpdatedAt: now}
		if err := userRepo.Save(ctx, repository.NoTX, user); err != nil {
			logger.Fatal().Err(err).Msg("create user")
		}
		fmt.Printf("created user %s (%s)\n", user.ID, user.Email)
	} else {
		fmt.Printf("user %s (%s) already present, %d credits\n", user.ID, user.Email, user.Credits)
	}

	if *bonus > 0 {
		res, err := creditUC.Grant(ctx, repository.NoTX, usecase.GrantInput{
			UserID:      user.ID,
			Amount:      *bonus,
			Type:        model.CreditTxBonus,
			ReferenceID: "seed:" + user.ID,
			Description: "seed bonus",
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("grant bonus")
		}
		if res.Granted {
			fmt.Printf("granted %d bonus credits, balance %d\n", *bonus, res.Balance)
		} else {
			fmt.Printf("bonus already granted, balance %d\n", res.Balance)
		}
	}

	token, err := web.NewAuthManager(cfg.Session).Issue(&model.SessionUser{ID: user.ID, Email: user.Email})
	if err != nil {
		logger.Fatal().Err(err).Msg("issue token")
	}
	fmt.Printf("\nAuthorization: Bearer %s\n", token)
}

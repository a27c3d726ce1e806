// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"automation-subscription-platform/internal/config"
	pg "automation-subscription-platform/internal/infra/db/postgres"
	httpapi "automation-subscription-platform/internal/infra/http"
	"automation-subscription-platform/internal/infra/logging"
	"automation-subscription-platform/internal/infra/metrics"
	pay "automation-subscription-platform/internal/infra/payment"
	red "automation-subscription-platform/internal/infra/redis"
	"automation-subscription-platform/internal/infra/sched"
	"automation-subscription-platform/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, relaxed levels)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	// ---- Postgres ----
	pool, err := pg.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	txm := pg.NewTxManager(pool)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	paymentRepo := pg.NewPaymentRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	serviceRepo := pg.NewServiceRepo(pool)

	// ---- Pricing ----
	converter, err := usecase.NewRateConverter(cfg.Pricing)
	if err != nil {
		logger.Fatal().Err(err).Msg("pricing config")
	}

	// ---- Use cases ----
	ledger := usecase.NewPaymentLedger(paymentRepo, logger)
	subManager := usecase.NewSubscriptionManager(subRepo, serviceRepo, txm, logger)
	settlement := usecase.NewSettlementUseCase(
		serviceRepo,
		converter,
		ledger,
		subManager,
		pay.BuildGateways(cfg.Payment),
		locker,
		cfg.Payment.CallbackBaseURL,
		logger,
	)

	// ---- Metrics ----
	metrics.MustRegister()

	// ---- HTTP server ----
	srv := httpapi.NewServer(cfg, settlement, subManager, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server stopped")
			cancel()
		}
	}()

	// ---- Stale payment reconciler ----
	reconciler := sched.NewPaymentReconciler(paymentRepo, subRepo, cfg.Reconciler.Interval, cfg.Reconciler.StaleAfter, logger)
	go reconciler.Start(ctx)

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}

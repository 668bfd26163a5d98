package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"resume-checkout/internal/config"
	"resume-checkout/internal/domain/ports/adapter"
	"resume-checkout/internal/infra/adapters/payment"
	"resume-checkout/internal/infra/adapters/release"
	pg "resume-checkout/internal/infra/db/postgres"
	"resume-checkout/internal/infra/logging"
	"resume-checkout/internal/infra/metrics"
	"resume-checkout/internal/infra/notify"
	red "resume-checkout/internal/infra/redis"
	"resume-checkout/internal/infra/sched"
	"resume-checkout/internal/infra/web"
	"resume-checkout/internal/infra/worker"
	"resume-checkout/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop gateway, console logs)")
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

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
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
	locker := red.NewLocker(redisClient)
	sessionIndex := red.NewSessionIndex(redisClient)

	// ---- Repositories ----
	intentRepo := pg.NewIntentRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- Gateway ----
	var gateway adapter.PaymentGateway
	if cfg.Runtime.Dev && cfg.Gateway.BaseURL == "" {
		gateway = payment.NewNoopGateway()
		logger.Warn().Msg("payment gateway: noop (dev)")
	} else {
		gateway = payment.NewPawaPayGateway(cfg.Gateway.BaseURL, cfg.Gateway.APIToken, cfg.Gateway.Timeout)
		logger.Info().Str("base_url", cfg.Gateway.BaseURL).Bool("sandbox", cfg.Gateway.Sandbox).
			Msg("payment gateway: pawapay")
	}

	// ---- Ops notifier ----
	var notifier adapter.OpsNotifier = notify.NopNotifier{}
	if cfg.Notify.TelegramToken != "" && cfg.Notify.ChatID != 0 {
		tg, err := notify.NewTelegramNotifier(cfg.Notify.TelegramToken, cfg.Notify.ChatID, logger)
		if err != nil {
			logger.Error().Err(err).Msg("telegram notifier disabled")
		} else {
			notifier = tg
		}
	}

	// ---- Use cases ----
	releaser := release.NewUnlockMarker(redisClient, cfg.Retention.Window, logger)
	gate := usecase.NewUnlockGate(releaser, logger)
	intentUC := usecase.NewIntentUseCase(intentRepo, txManager, sessionIndex, gateway, locker, gate, notifier, cfg.Redis.TTL, logger)

	// ---- Reconciliation ----
	workerPool := worker.NewPool(cfg.Reconciler.Workers, logger)
	workerPool.Start(ctx)
	defer workerPool.Stop()
	reconciler := sched.NewReconciler(intentUC, gateway, workerPool,
		cfg.Reconciler.PollInterval, cfg.Reconciler.MaxAttempts, logger)

	retention := sched.NewRetentionWorker(cfg.Retention.SweepInterval, cfg.Retention.Window,
		intentRepo, logger, gate, intentUC)
	go func() { _ = retention.Run(ctx) }()

	// ---- HTTP ----
	sessions := web.NewSessionManager(cfg.Auth.HMACSecret, cfg.Auth.SessionTTL)
	if cfg.Runtime.Dev {
		// a ready-to-use session so the noop-gateway flow works out of the box
		if sid, token, err := sessions.MintDevSession(); err == nil {
			logger.Info().Str("session_id", sid).Str("bearer", token).Msg("dev session minted")
		}
	}
	srv := web.NewServer(intentUC, gateway, gate, reconciler, sessions,
		cfg.Gateway.Plans, cfg.Gateway.Currency, cfg.Gateway.Country, cfg.Checkout.ReturnURL, logger)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.Routes(),
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	cancel() // stops watchers and the retention worker
}

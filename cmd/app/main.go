// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"coaching-subscription/internal/config"
	"coaching-subscription/internal/domain/lifecycle"
	"coaching-subscription/internal/infra/api"
	pg "coaching-subscription/internal/infra/db/postgres"
	"coaching-subscription/internal/infra/logging"
	"coaching-subscription/internal/infra/metrics"
	red "coaching-subscription/internal/infra/redis"
	"coaching-subscription/internal/infra/sched"
	"coaching-subscription/internal/usecase"
)

// set with -ldflags "-X main.version=... -X main.commit=..."
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- Config ----
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	// amounts go out as JSON numbers, matching the persisted shape
	decimal.MarshalJSONWithoutQuotes = true

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis (optional) ----
	var (
		limiter usecase.RateLimiter
		locker  red.Locker
	)
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		limiter = red.NewRateLimiter(redisClient)
		locker = red.NewLocker(redisClient)
	} else {
		logger.Warn().Msg("redis.url not set; submit rate limiting and sweep locking disabled")
	}

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	tenantRepo := pg.NewTenantRepo(pool)
	proofRepo := pg.NewPaymentProofRepo(pool)

	// ---- Use cases ----
	policy := lifecycle.Policy{
		TrialDays:        cfg.Subscription.TrialDays,
		TermDays:         cfg.Subscription.TermDays,
		ExpiringSoonDays: cfg.Subscription.ExpiringSoonDays,
	}
	subUC := usecase.NewSubscriptionUseCase(tenantRepo, proofRepo, tm, limiter, usecase.SubscriptionSettings{
		Policy:        policy,
		DefaultAmount: decimal.NewFromInt(cfg.Subscription.DefaultAmount),
		SubmitLimit:   cfg.Subscription.SubmitRateLimit,
		SubmitWindow:  cfg.Subscription.SubmitRateWindow,
		Dev:           cfg.Runtime.Dev,
	}, nil, logger)
	monitorUC := usecase.NewMonitorUseCase(tenantRepo, proofRepo, tm, policy, nil, logger)

	// ---- Status sweep ----
	sweep := sched.NewStatusSweep(cfg.Scheduler.SweepInterval, monitorUC, proofRepo, locker, func() (int32, int32, int32) {
		st := pool.Stat()
		return st.TotalConns(), st.IdleConns(), st.AcquiredConns()
	}, logger)
	go func() {
		if err := sweep.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("status sweep stopped")
		}
	}()

	// ---- HTTP ----
	srv := api.NewServer(subUC, monitorUC, logger)
	handler := api.NewRouter(srv, api.RouterConfig{
		Auth:           api.NewAuthenticator(cfg.Auth.JWTSecret),
		RequestTimeout: cfg.HTTP.RequestTimeout,
		Ready:          pool.Ping,
	})
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Str("version", version).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			stop()
		}
	}()

	// ---- Graceful shutdown ----
	<-ctx.Done()
	logger.Info().Msg("shutdown requested")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}

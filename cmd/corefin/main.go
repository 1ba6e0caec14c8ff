package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/hibiken/asynq"

	"github.com/corefin/corefin/internal/accounts"
	"github.com/corefin/corefin/internal/app"
	"github.com/corefin/corefin/internal/journal"
	"github.com/corefin/corefin/internal/observability"
	"github.com/corefin/corefin/internal/periods"
	"github.com/corefin/corefin/internal/platform/cache"
	"github.com/corefin/corefin/internal/platform/db"
	"github.com/corefin/corefin/internal/posting"
	"github.com/corefin/corefin/internal/shared"
	"github.com/corefin/corefin/internal/stockledger"
	"github.com/corefin/corefin/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)

	periodRepo := periods.NewRepository(pool)
	periodService := periods.NewService(periodRepo, auditLogger)
	periodHandler := periods.NewHandler(periodService, logger)

	accountRepo := accounts.NewRepository(pool)
	accountService := accounts.NewService(accountRepo)
	roleResolver := accounts.NewRoleResolver(accountRepo, redisClient, cfg.AccountCacheTTL)
	accountHandler := accounts.NewHandler(accountService, roleResolver, logger)

	var locker stockledger.Locker
	if cfg.ItemLockEnabled {
		locker = redislock.New(redisClient)
	}
	stockRepo := stockledger.NewRepository(pool)
	stockService := stockledger.NewService(stockRepo, auditLogger, locker, stockledger.ServiceConfig{LockTTL: cfg.ItemLockTTL})
	stockHandler := stockledger.NewHandler(stockService, logger, metrics)

	journalRepo := journal.NewRepository(pool)
	journalService := journal.NewService(journalRepo, auditLogger)
	journalHandler := journal.NewHandler(journalService, logger)

	postingUOW := posting.NewUnitOfWork(pool)
	postingService := posting.NewService(postingUOW, roleResolver, auditLogger)
	postingHandler := posting.NewHandler(postingService, logger, metrics)

	jobInspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("asynq client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("asynq client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(jobInspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Pool:               pool,
		PeriodsHandler:     periodHandler,
		AccountsHandler:    accountHandler,
		StockLedgerHandler: stockHandler,
		JournalHandler:     journalHandler,
		PostingHandler:     postingHandler,
		JobHandler:         jobHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			os.Exit(1)
		}
	}
}

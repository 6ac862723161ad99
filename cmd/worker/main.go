package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/filmledger/filmledger/internal/app"
	"github.com/filmledger/filmledger/internal/cashledger"
	"github.com/filmledger/filmledger/internal/platform/db"
	"github.com/filmledger/filmledger/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	outboxRepo := cashledger.NewOutboxRepository(pool)
	ledgerClient := cashledger.NewClient(cfg.CashLedgerURL, cfg.CashLedgerProjectID, cfg.CashLedgerUserID, cfg.CashLedgerTimeout, logger)
	dispatcher := cashledger.NewDispatcher(outboxRepo, ledgerClient, cfg.OutboxMaxAttempts, logger)

	sweepTask, err := jobs.NewCashOutboxDispatchTask(time.Now().UTC())
	if err != nil {
		logger.Error("build sweep task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskCashOutboxDispatch, Handler: jobs.NewCashOutboxDispatchHandler(dispatcher, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.OutboxSweepCron, Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

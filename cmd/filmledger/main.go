package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/filmledger/filmledger/internal/app"
	"github.com/filmledger/filmledger/internal/platform/cache"
	"github.com/filmledger/filmledger/internal/platform/db"
	"github.com/filmledger/filmledger/internal/process"
	"github.com/filmledger/filmledger/internal/product"
	"github.com/filmledger/filmledger/internal/sales"
	"github.com/filmledger/filmledger/internal/shared"
	"github.com/filmledger/filmledger/internal/stock"
	"github.com/filmledger/filmledger/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(dbpool)
	snapshotCache := stock.NewSnapshotCache(redisClient, cfg.SnapshotCacheTTL)

	stockRepo := stock.NewRepository(dbpool)
	stockService := stock.NewService(stockRepo, snapshotCache, auditLogger, logger)
	stockHandler := stock.NewHandler(logger, stockService)

	processRepo := process.NewRepository(dbpool)
	processService := process.NewService(processRepo, stockService, logger)
	processHandler := process.NewHandler(logger, processService)

	productRepo := product.NewRepository(dbpool)
	productService := product.NewService(productRepo, stockService, auditLogger, logger)
	productHandler := product.NewHandler(logger, productService)

	salesRepo := sales.NewRepository(dbpool)
	salesService := sales.NewService(salesRepo, stockService, jobsClient, logger)
	salesHandler := sales.NewHandler(logger, salesService)

	jobHandler := jobs.NewHandler(asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr}), logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		StockHandler:   stockHandler,
		ProcessHandler: processHandler,
		ProductHandler: productHandler,
		SalesHandler:   salesHandler,
		JobHandler:     jobHandler,
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
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.AppRequestTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server run", slog.Any("error", err))
			os.Exit(1)
		}
	}
}

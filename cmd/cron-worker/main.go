package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/haiminhle/storefront-backend/internal/cron"
	"github.com/haiminhle/storefront-backend/internal/inventory"
	"github.com/haiminhle/storefront-backend/internal/loyalty"
	"github.com/haiminhle/storefront-backend/internal/orders"
	"github.com/haiminhle/storefront-backend/internal/returns"
	"github.com/haiminhle/storefront-backend/pkg/config"
	"github.com/haiminhle/storefront-backend/pkg/db"
	"github.com/haiminhle/storefront-backend/pkg/logger"
	"github.com/haiminhle/storefront-backend/pkg/metrics"
	"github.com/haiminhle/storefront-backend/pkg/migrate"
	"github.com/haiminhle/storefront-backend/pkg/outbox"
	"github.com/haiminhle/storefront-backend/pkg/redis"
	"github.com/haiminhle/storefront-backend/pkg/sequence"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gormDB := dbClient.DB()
	outboxRepo := outbox.NewRepository(gormDB)
	outboxSvc := outbox.NewService(outboxRepo, logg)

	seq, err := sequence.NewGenerator(gormDB)
	if err != nil {
		logg.Error(context.Background(), "failed to create sequence generator", err)
		os.Exit(1)
	}
	loyaltySvc, err := loyalty.NewService(gormDB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create loyalty service", err)
		os.Exit(1)
	}
	inventorySvc, err := inventory.NewService(inventory.ServiceParams{
		Repo:             inventory.NewRepository(gormDB),
		Tx:               dbClient,
		Outbox:           outboxSvc,
		Logger:           logg,
		DefaultProfitPct: decimal.NewFromFloat(cfg.Pricing.DefaultTargetProfitPercent),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory service", err)
		os.Exit(1)
	}
	ordersSvc, err := orders.NewService(orders.ServiceParams{
		Repo:       orders.NewRepository(gormDB),
		Tx:         dbClient,
		Inventory:  inventorySvc,
		Sequence:   seq,
		Outbox:     outboxSvc,
		Loyalty:    loyaltySvc,
		Logger:     logg,
		HistoryCap: cfg.Returns.HistoryCapacity,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}
	returnsSvc, err := returns.NewService(returns.ServiceParams{
		Repo:     returns.NewRepository(gormDB),
		Tx:       dbClient,
		Orders:   ordersSvc,
		Sequence: seq,
		Outbox:   outboxSvc,
		Loyalty:  loyaltySvc,
		Logger:   logg,
		Config:   cfg.Returns,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create returns service", err)
		os.Exit(1)
	}

	expiryJob, err := cron.NewReturnExpiryJob(cron.ReturnExpiryJobParams{
		Logger:  logg,
		Returns: returnsSvc,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create return expiry job", err)
		os.Exit(1)
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outboxRepo,
		Retention:  cfg.Outbox.RetentionAfter,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker"), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(expiryJob, retentionJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

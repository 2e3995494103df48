package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/haiminhle/storefront-backend/api/routes"
	"github.com/haiminhle/storefront-backend/internal/cancellations"
	"github.com/haiminhle/storefront-backend/internal/inventory"
	"github.com/haiminhle/storefront-backend/internal/loyalty"
	"github.com/haiminhle/storefront-backend/internal/notifications"
	"github.com/haiminhle/storefront-backend/internal/orders"
	"github.com/haiminhle/storefront-backend/internal/payments/vnpay"
	"github.com/haiminhle/storefront-backend/internal/returns"
	"github.com/haiminhle/storefront-backend/pkg/config"
	"github.com/haiminhle/storefront-backend/pkg/db"
	"github.com/haiminhle/storefront-backend/pkg/env"
	"github.com/haiminhle/storefront-backend/pkg/logger"
	"github.com/haiminhle/storefront-backend/pkg/migrate"
	"github.com/haiminhle/storefront-backend/pkg/outbox"
	"github.com/haiminhle/storefront-backend/pkg/redis"
	"github.com/haiminhle/storefront-backend/pkg/sequence"
)

const shutdownGrace = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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
	outboxSvc := outbox.NewService(outbox.NewRepository(gormDB), logg)

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

	notificationsSvc, err := notifications.NewService(gormDB)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
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

	cancellationsSvc, err := cancellations.NewService(cancellations.ServiceParams{
		Repo:               cancellations.NewRepository(gormDB),
		Tx:                 dbClient,
		Orders:             ordersSvc,
		Outbox:             outboxSvc,
		Logger:             logg,
		AutoApprovePending: cfg.Cancellation.AutoApprovePending,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cancellations service", err)
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

	paymentsSvc, err := vnpay.NewService(vnpay.ServiceParams{
		Orders: ordersSvc,
		Client: vnpay.NewClient(cfg.VNPay),
		Guard:  redisClient,
		Logger: logg,
		Config: cfg.VNPay,
		IsProd: cfg.App.IsProd(),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	handler := routes.NewRouter(routes.Deps{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		Redis:         redisClient,
		Inventory:     inventorySvc,
		Orders:        ordersSvc,
		Cancellations: cancellationsSvc,
		Returns:       returnsSvc,
		Payments:      paymentsSvc,
		Notifications: notificationsSvc,
		Loyalty:       loyaltySvc,
	})

	addr := ":" + env.Get("PORT", cfg.App.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "error during server shutdown", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "api server shut down gracefully")
}

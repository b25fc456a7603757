package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/sitestock-backend/internal/catalog"
	"github.com/angelmondragon/sitestock-backend/internal/cron"
	"github.com/angelmondragon/sitestock-backend/internal/inventory"
	"github.com/angelmondragon/sitestock-backend/internal/notifications"
	"github.com/angelmondragon/sitestock-backend/internal/rollup"
	"github.com/angelmondragon/sitestock-backend/internal/transactions"
	"github.com/angelmondragon/sitestock-backend/pkg/bootstrap"
	"github.com/angelmondragon/sitestock-backend/pkg/config"
	"github.com/angelmondragon/sitestock-backend/pkg/db"
	"github.com/angelmondragon/sitestock-backend/pkg/logger"
	"github.com/angelmondragon/sitestock-backend/pkg/metrics"
	"github.com/angelmondragon/sitestock-backend/pkg/migrate"
	"github.com/angelmondragon/sitestock-backend/pkg/outbox"
	"github.com/angelmondragon/sitestock-backend/pkg/redis"
)

func main() {
	bootstrap.Run("cron-worker", run)
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer bootstrap.CloseWith(logg, "database", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer bootstrap.CloseWith(logg, "redis", redisClient.Close)

	lock, err := cron.NewRedisLock(redisClient.Raw(), cfg.Cron.LockKey, cfg.Cron.LockTTL)
	if err != nil {
		return fmt.Errorf("cron lock: %w", err)
	}
	registry, err := buildRegistry(cfg, logg, dbClient)
	if err != nil {
		return fmt.Errorf("register cron jobs: %w", err)
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return fmt.Errorf("cron service: %w", err)
	}

	logg.Info(logg.WithField(ctx, "jobs", len(registry.Jobs())), "starting cron worker")
	return service.Run(ctx)
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*cron.Registry, error) {
	conn := dbClient.DB()

	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outbox.NewRepository(conn),
		DLQ:        outbox.NewDLQRepository(conn),
		Retention:  cfg.Cron.OutboxRetentionDays,
	})
	if err != nil {
		return nil, fmt.Errorf("outbox retention job: %w", err)
	}

	cleanup, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: notifications.NewRepository(conn),
		Retention:  cfg.Cron.NotificationRetention,
	})
	if err != nil {
		return nil, fmt.Errorf("notification cleanup job: %w", err)
	}

	ledger, err := transactions.NewService(transactions.NewRepository(conn))
	if err != nil {
		return nil, err
	}
	totals, err := rollup.NewService(rollup.NewRepository(conn), ledger)
	if err != nil {
		return nil, err
	}
	reconcile, err := cron.NewRollupReconcileJob(cron.RollupReconcileJobParams{
		Logger:   logg,
		Projects: catalog.NewRepository(conn),
		Rollup:   totals,
	})
	if err != nil {
		return nil, fmt.Errorf("rollup reconcile job: %w", err)
	}

	lowStock, err := cron.NewLowStockScanJob(cron.LowStockScanJobParams{
		Logger:    logg,
		DB:        dbClient,
		Inventory: inventory.NewRepository(conn),
		Outbox:    outbox.NewService(outbox.NewRepository(conn), logg),
	})
	if err != nil {
		return nil, fmt.Errorf("low stock scan job: %w", err)
	}

	return cron.NewRegistry(retention, cleanup, reconcile, lowStock)
}

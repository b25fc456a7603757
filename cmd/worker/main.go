package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/sitestock-backend/internal/notifications"
	"github.com/angelmondragon/sitestock-backend/pkg/bootstrap"
	"github.com/angelmondragon/sitestock-backend/pkg/config"
	"github.com/angelmondragon/sitestock-backend/pkg/db"
	"github.com/angelmondragon/sitestock-backend/pkg/logger"
	"github.com/angelmondragon/sitestock-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/sitestock-backend/pkg/outbox/registry"
	"github.com/angelmondragon/sitestock-backend/pkg/pubsub"
	"github.com/angelmondragon/sitestock-backend/pkg/redis"
)

func main() {
	bootstrap.Run("worker", run)
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer bootstrap.CloseWith(logg, "database", dbClient.Close)

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer bootstrap.CloseWith(logg, "redis", redisClient.Close)

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return fmt.Errorf("bootstrap pubsub: %w", err)
	}
	defer bootstrap.CloseWith(logg, "pubsub", pubsubClient.Close)

	consumers, err := buildConsumers(cfg, logg, dbClient, redisClient, pubsubClient)
	if err != nil {
		return fmt.Errorf("build consumers: %w", err)
	}

	service, err := NewService(ServiceParams{
		Logger: logg,
		Dependencies: map[string]pinger{
			"database": dbClient,
			"redis":    redisClient,
			"pubsub":   pubsubClient,
		},
		Consumers: consumers,
	})
	if err != nil {
		return fmt.Errorf("worker service: %w", err)
	}

	logg.Info(ctx, "starting worker")
	return service.Run(ctx)
}

// buildConsumers creates one notification consumer per configured
// subscription. Both share the decoder registry and the redis dedupe keys.
func buildConsumers(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, ps *pubsub.Client) (map[string]runner, error) {
	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		return nil, err
	}

	stockManager, err := parseStockManager(cfg.Notify.StockManagerID)
	if err != nil {
		return nil, err
	}
	if stockManager == uuid.Nil {
		logg.Warn(context.Background(), "no stock manager configured, low-stock and return notifications are disabled")
	}

	repo := notifications.NewRepository(dbClient.DB())
	decoders := registry.NewDefaultDecoderRegistry()

	consumers := map[string]runner{}
	for name, sub := range map[string]string{
		"domain-notifications": cfg.PubSub.DomainSubscription,
		"stock-notifications":  cfg.PubSub.NotificationSubscription,
	} {
		if sub == "" {
			continue
		}
		consumer, err := notifications.NewConsumer(notifications.ConsumerParams{
			Repository:     repo,
			Subscription:   ps.Subscription(sub),
			Decoders:       decoders,
			Idempotency:    manager,
			Logger:         logg,
			StockManagerID: stockManager,
		})
		if err != nil {
			return nil, err
		}
		consumers[name] = consumer
	}
	return consumers, nil
}

func parseStockManager(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(raw)
}

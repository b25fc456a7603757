package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/sitestock-backend/api/routes"
	"github.com/angelmondragon/sitestock-backend/internal/catalog"
	"github.com/angelmondragon/sitestock-backend/internal/inventory"
	"github.com/angelmondragon/sitestock-backend/internal/issuance"
	"github.com/angelmondragon/sitestock-backend/internal/materialrequests"
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
	bootstrap.Run("api", run)
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

	services, err := buildServices(cfg, logg, dbClient, redisClient)
	if err != nil {
		return fmt.Errorf("wire services: %w", err)
	}

	// PORT wins so the platform router can pick the listener
	port := cmp.Or(os.Getenv("PORT"), cfg.App.Port)
	server := &http.Server{
		Addr: ":" + port,
		Handler: routes.NewRouter(cfg, logg, routes.Infra{
			DB:          dbClient,
			Redis:       redisClient,
			Idempotency: redisClient,
			Gatherer:    prometheus.DefaultGatherer,
			HTTPMetrics: metrics.NewHTTPMetrics(prometheus.DefaultRegisterer),
		}, services),
		ReadHeaderTimeout: 10 * time.Second,
	}
	ctx = logg.WithFields(ctx, map[string]any{
		"addr":     server.Addr,
		"instance": cmp.Or(os.Getenv("DYNO"), "local"),
	})

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()
	logg.Info(ctx, "api server listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logg.Info(ctx, "draining api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (routes.Services, error) {
	conn := dbClient.DB()
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)

	catalogRepo := catalog.NewRepository(conn)
	catalogSvc, err := catalog.NewService(catalogRepo)
	if err != nil {
		return routes.Services{}, err
	}

	requestRepo := materialrequests.NewRepository(conn)
	requestSvc, err := materialrequests.NewService(requestRepo, catalogRepo, dbClient, emitter)
	if err != nil {
		return routes.Services{}, err
	}

	ledger, err := transactions.NewService(transactions.NewRepository(conn))
	if err != nil {
		return routes.Services{}, err
	}

	totals, err := rollup.NewService(rollup.NewRepository(conn), ledger)
	if err != nil {
		return routes.Services{}, err
	}

	stock, err := inventory.NewService(inventory.NewRepository(conn), catalogRepo, dbClient)
	if err != nil {
		return routes.Services{}, err
	}

	var locker issuance.RequestLocker
	if cfg.FeatureFlags.IssuanceLock {
		locker = issuance.NewRedisLocker(redisClient.Raw(), cfg.Issuance.LockTTL, cfg.Issuance.LockWait)
	}

	issuer, err := issuance.NewService(issuance.ServiceParams{
		TX:           dbClient,
		Requests:     requestRepo,
		Catalog:      catalogRepo,
		Inventory:    stock,
		Transactions: ledger,
		Rollup:       totals,
		Outbox:       emitter,
		Locker:       locker,
		LockKeys:     redisClient,
		Metrics:      metrics.NewIssuanceMetrics(prometheus.DefaultRegisterer),
		Logger:       logg,
	})
	if err != nil {
		return routes.Services{}, err
	}

	notifySvc, err := notifications.NewService(notifications.NewRepository(conn))
	if err != nil {
		return routes.Services{}, err
	}

	return routes.Services{
		Catalog:       catalogSvc,
		Requests:      requestSvc,
		Issuance:      issuer,
		Inventory:     stock,
		Transactions:  ledger,
		Rollup:        totals,
		Notifications: notifySvc,
	}, nil
}

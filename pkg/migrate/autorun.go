package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/sitestock-backend/pkg/config"
	"github.com/angelmondragon/sitestock-backend/pkg/db"
	"github.com/angelmondragon/sitestock-backend/pkg/db/models"
	"github.com/angelmondragon/sitestock-backend/pkg/logger"
)

// MaybeRunDev brings a dev database up to date at boot when the AutoMigrate
// flag is set. Postgres gets the embedded goose migrations; sqlite, which
// cannot run them, is built from the gorm models.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "sqlite": cfg.DB.IsSQLite()})
	logg.Info(ctx, "dev auto-migrate starting")

	switch conn := client.DB().WithContext(ctx); {
	case cfg.DB.IsSQLite():
		if err := conn.AutoMigrate(models.All()...); err != nil {
			return fmt.Errorf("sqlite automigrate: %w", err)
		}
	default:
		sqlDB, err := conn.DB()
		if err != nil {
			return fmt.Errorf("dev migrations: %w", err)
		}
		if err := Run(ctx, sqlDB, Embedded(), "up", nil); err != nil {
			return err
		}
	}
	logg.Info(ctx, "dev auto-migrate finished")
	return nil
}

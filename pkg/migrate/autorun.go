package migrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/bazaarhq/bazaar-backend/pkg/config"
	"github.com/bazaarhq/bazaar-backend/pkg/db"
	"github.com/bazaarhq/bazaar-backend/pkg/db/models"
	"github.com/bazaarhq/bazaar-backend/pkg/logger"
)

// MaybeRunDev migrates a dev database on boot when BAZAAR_AUTO_MIGRATE is set.
// sqlite cannot run the Postgres DDL, so its schema comes from the models.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	ctx = logg.WithField(ctx, "driver", cfg.DB.Driver)

	if strings.EqualFold(cfg.DB.Driver, config.DriverSQLite) {
		if err := client.DB().WithContext(ctx).AutoMigrate(models.All()...); err != nil {
			return fmt.Errorf("auto-migrate models: %w", err)
		}
		logg.Info(logg.WithField(ctx, "models", len(models.All())), "sqlite schema synced from models")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return err
	}
	steps, err := Run(ctx, sqlDB, DefaultDir, "up")
	if err != nil {
		return err
	}
	ctx = logg.WithFields(ctx, map[string]any{"dir": DefaultDir, "applied": len(steps)})
	logg.Info(ctx, "dev migrations up to date")
	return nil
}

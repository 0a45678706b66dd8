package migrate

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/srms-platform/srms-backend/pkg/config"
	"github.com/srms-platform/srms-backend/pkg/db"
	"github.com/srms-platform/srms-backend/pkg/logger"
)

// MaybeRunDev applies the embedded migrations at boot, but only in dev and
// only when SRMS_AUTO_MIGRATE is set.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.Flags.AutoMigrate {
		return nil
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	var out bytes.Buffer
	err = Run(ctx, sqlDB, EmbeddedDir, "up", &out)
	if lines := strings.TrimSpace(out.String()); lines != "" {
		ctx = logg.WithField(ctx, "migrations", strings.Split(lines, "\n"))
	}
	if err != nil {
		logg.Error(ctx, "migrate.autorun_failed", err)
		return err
	}
	logg.Info(ctx, "migrate.autorun_completed")
	return nil
}

package migrate

import (
	"context"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/bluehorizon/skydesk/pkg/db"
	"github.com/bluehorizon/skydesk/pkg/logger"
)

// Up applies every pending embedded migration. The daemon calls it on every
// start so the local store always matches the binary.
func Up(ctx context.Context, logg *logger.Logger, client *db.Client) error {
	sqlDB, err := client.SQL()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, sqlDB, Embedded())
	if err != nil {
		return fmt.Errorf("creating goose provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	if logg != nil && len(results) > 0 {
		logg.Info(logg.WithField(ctx, "applied", len(results)), "local store migrations applied")
	}
	return nil
}

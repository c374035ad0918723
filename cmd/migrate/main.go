package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/bluehorizon/skydesk/internal/cache"
	"github.com/bluehorizon/skydesk/pkg/config"
	"github.com/bluehorizon/skydesk/pkg/db"
	"github.com/bluehorizon/skydesk/pkg/logger"
	"github.com/bluehorizon/skydesk/pkg/migrate"
)

const usage = "migrate -cmd up|down|status|version|create|validate|purge-cache"

func main() {
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", usage)
	dir := flag.String("dir", "", "migrations directory on disk (default: the set embedded in the binary)")
	name := flag.String("name", "", "migration name (create)")
	version := flag.String("version", "", "target version YYYYMMDDHHMMSS (version)")
	identity := flag.String("identity", "", "account DID whose cached snapshots are dropped (purge-cache)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":     cfg.App.Env,
		"cmd":     *cmd,
		"db_path": cfg.DB.Path,
	})

	if err := run(ctx, cfg, logg, *cmd, *dir, *name, *version, *identity); err != nil {
		logg.Error(ctx, "migrate failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, cmd, dir, name, version, identity string) error {
	// create and validate work on files only.
	switch cmd {
	case "create":
		if dir == "" {
			dir = migrate.DefaultDir
		}
		if name == "" {
			return errors.New("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(dir, name)
		if err != nil {
			return err
		}
		fmt.Println("created migration:", path)
		return nil
	case "validate":
		if dir == "" {
			if err := migrate.ValidateFS(migrate.Embedded()); err != nil {
				return err
			}
		} else if err := migrate.ValidateDir(dir); err != nil {
			return err
		}
		fmt.Println("migration validation passed")
		return nil
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("open local store: %w", err)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.SQL()
	if err != nil {
		return err
	}

	switch cmd {
	case "up", "down", "status":
		return migrate.Run(ctx, sqlDB, dir, cmd)
	case "version":
		if version == "" {
			return errors.New("missing -version for version")
		}
		return migrate.MigrateToVersion(ctx, sqlDB, dir, version)
	case "purge-cache":
		if identity == "" {
			return errors.New("missing -identity for purge-cache")
		}
		if err := cache.NewRepository(dbClient.DB()).Purge(ctx, identity); err != nil {
			return err
		}
		logg.Info(logg.WithIdentity(ctx, identity), "cached snapshots purged")
		return nil
	default:
		return fmt.Errorf("unknown -cmd value %q (%s)", cmd, usage)
	}
}

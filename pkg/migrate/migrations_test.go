package migrate_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bluehorizon/skydesk/pkg/config"
	"github.com/bluehorizon/skydesk/pkg/db"
	"github.com/bluehorizon/skydesk/pkg/migrate"
)

func TestOutboxMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_outbox.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no outbox migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS outbox",
		"CHECK (status IN ('queued', 'retrying', 'sent', 'failed'))",
		"next_retry_at DATETIME NOT NULL",
		"CREATE INDEX IF NOT EXISTS idx_outbox_due",
		"DROP TABLE IF EXISTS outbox",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestValidateDirAcceptsShippedMigrations(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("shipped migrations should validate: %v", err)
	}
}

func TestUpCreatesLocalStoreTables(t *testing.T) {
	ctx := context.Background()
	client, err := db.New(ctx, config.DBConfig{Path: filepath.Join(t.TempDir(), "store.db")}, nil)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer client.Close()

	if err := migrate.Up(ctx, nil, client); err != nil {
		t.Fatalf("first Up: %v", err)
	}
	if err := migrate.Up(ctx, nil, client); err != nil {
		t.Fatalf("second Up should be a no-op: %v", err)
	}

	for _, table := range []string{"drafts", "outbox", "cache_timeline", "cache_notifications", "cache_profile"} {
		if !client.DB().Migrator().HasTable(table) {
			t.Fatalf("expected table %s", table)
		}
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Cache Index")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_cache_index.sql") {
		t.Fatalf("unexpected migration path %s", path)
	}
	second, err := migrate.CreateSQLMigration(dir, "add cache index")
	if err != nil {
		t.Fatalf("create second migration: %v", err)
	}
	if filepath.Base(second) <= filepath.Base(path) {
		t.Fatalf("expected %s to sort after %s", second, path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("created migrations should validate: %v", err)
	}
	if _, err := migrate.CreateSQLMigration(dir, "!!!"); err == nil {
		t.Fatalf("expected error for unusable name")
	}
}

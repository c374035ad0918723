package db

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/bluehorizon/skydesk/pkg/config"
	pkgerrors "github.com/bluehorizon/skydesk/pkg/errors"
	"github.com/bluehorizon/skydesk/pkg/logger"
)

type testModel struct {
	ID   int
	Name string `gorm:"uniqueIndex"`
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(context.Background(), config.DBConfig{Path: filepath.Join(t.TempDir(), "nested", "test.db")}, nil)
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	if err := client.DB().AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return client
}

func TestNewCreatesNestedDirectory(t *testing.T) {
	client := newTestClient(t)
	if filepath.Base(filepath.Dir(client.Path())) != "nested" {
		t.Fatalf("unexpected path %s", client.Path())
	}
	if _, err := New(context.Background(), config.DBConfig{}, nil); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestQueryLoggerReportsFailuresOnly(t *testing.T) {
	var logs bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &logs})
	client, err := New(context.Background(), config.DBConfig{Path: filepath.Join(t.TempDir(), "q.db")}, logg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	if err := client.DB().AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	logs.Reset()

	var row testModel
	if err := client.DB().First(&row, "name = ?", "missing").Error; !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if strings.Contains(logs.String(), "sql.failed") {
		t.Fatalf("not-found lookups should not be logged: %s", logs.String())
	}

	_ = client.DB().Exec("SELECT * FROM no_such_table").Error
	if !strings.Contains(logs.String(), "sql.failed") {
		t.Fatalf("expected failed statement to be logged, got %s", logs.String())
	}
}

func TestPing(t *testing.T) {
	client := newTestClient(t)
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	client := newTestClient(t)
	db := client.DB()
	if err := db.Create(&testModel{Name: "dup"}).Error; err != nil {
		t.Fatalf("seed insert failed: %v", err)
	}
	err := db.Create(&testModel{Name: "dup"}).Error
	if !IsUniqueViolation(err, "") {
		t.Fatalf("expected unique violation, got %v", err)
	}
	if !IsUniqueViolation(err, "test_models.name") {
		t.Fatalf("expected constraint match, got %v", err)
	}
	if IsUniqueViolation(errors.New("other"), "") {
		t.Fatalf("unexpected match for plain error")
	}
}

func TestStorageErrorKeepsTypedErrors(t *testing.T) {
	typed := pkgerrors.New(pkgerrors.CodeNotFound, "missing")
	if got := StorageError(typed, "load"); got != error(typed) {
		t.Fatalf("expected typed error to pass through, got %v", got)
	}
	if got := StorageError(errors.New("disk full"), "load"); pkgerrors.CodeOf(got) != pkgerrors.CodeStorage {
		t.Fatalf("expected storage code, got %v", got)
	}
	if StorageError(nil, "noop") != nil {
		t.Fatalf("nil should stay nil")
	}
}

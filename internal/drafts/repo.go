package drafts

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dbpkg "github.com/bluehorizon/skydesk/pkg/db"
	"github.com/bluehorizon/skydesk/pkg/db/models"
)

// Repository persists drafts, one row per context key.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Upsert replaces the draft for key, keeping the original created_at.
func (r *Repository) Upsert(ctx context.Context, key string, payload json.RawMessage, now time.Time) error {
	row := models.Draft{
		ContextKey: key,
		Payload:    payload,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "context_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
		}).
		Create(&row).Error
	return dbpkg.StorageError(err, "upsert draft")
}

// Find returns nil when no draft exists for key.
func (r *Repository) Find(ctx context.Context, key string) (*models.Draft, error) {
	var row models.Draft
	err := r.db.WithContext(ctx).Where("context_key = ?", key).Take(&row).Error
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, nil
		}
		return nil, dbpkg.StorageError(err, "load draft")
	}
	return &row, nil
}

func (r *Repository) Delete(ctx context.Context, key string) error {
	err := r.db.WithContext(ctx).Where("context_key = ?", key).Delete(&models.Draft{}).Error
	return dbpkg.StorageError(err, "delete draft")
}

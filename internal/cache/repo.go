package cache

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dbpkg "github.com/bluehorizon/skydesk/pkg/db"
	"github.com/bluehorizon/skydesk/pkg/db/models"
	"github.com/bluehorizon/skydesk/pkg/enums"
	pkgerrors "github.com/bluehorizon/skydesk/pkg/errors"
)

// Repository reads and writes snapshot rows in the per-resource cache tables.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) table(resource enums.ResourceType) (string, error) {
	table, ok := resource.CacheTable()
	if !ok {
		return "", pkgerrors.New(pkgerrors.CodeInternal, "resource "+string(resource)+" is not cacheable")
	}
	return table, nil
}

// Find returns nil when nothing is cached for (identity, key).
func (r *Repository) Find(ctx context.Context, resource enums.ResourceType, identity, key string) (*models.CacheEntry, error) {
	table, err := r.table(resource)
	if err != nil {
		return nil, err
	}
	var entry models.CacheEntry
	err = r.db.WithContext(ctx).
		Table(table).
		Where("owner_identity = ? AND key = ?", identity, key).
		Take(&entry).Error
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, nil
		}
		return nil, dbpkg.StorageError(err, "read cache entry")
	}
	return &entry, nil
}

// Put overwrites the snapshot unconditionally. The last writer wins.
func (r *Repository) Put(ctx context.Context, resource enums.ResourceType, identity, key string, payload []byte, cachedAt time.Time) error {
	table, err := r.table(resource)
	if err != nil {
		return err
	}
	entry := models.CacheEntry{
		OwnerIdentity: identity,
		Key:           key,
		Payload:       payload,
		CachedAt:      cachedAt.UTC(),
	}
	err = r.db.WithContext(ctx).
		Table(table).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner_identity"}, {Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "cached_at"}),
		}).
		Create(&entry).Error
	return dbpkg.StorageError(err, "write cache entry")
}

// Purge drops every snapshot owned by identity across the cache tables.
func (r *Repository) Purge(ctx context.Context, identity string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, resource := range []enums.ResourceType{enums.ResourceTimeline, enums.ResourceNotifications, enums.ResourceProfile} {
			table, _ := resource.CacheTable()
			if err := tx.Table(table).Where("owner_identity = ?", identity).Delete(&models.CacheEntry{}).Error; err != nil {
				return dbpkg.StorageError(err, "purge cache")
			}
		}
		return nil
	})
}

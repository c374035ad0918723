package models

import (
	"encoding/json"
	"time"
)

// CacheEntry is a stored snapshot of a remote read. The same shape backs
// cache_timeline, cache_notifications and cache_profile; callers pick the
// table with Table().
type CacheEntry struct {
	OwnerIdentity string          `gorm:"column:owner_identity;primaryKey"`
	Key           string          `gorm:"column:key;primaryKey"`
	Payload       json.RawMessage `gorm:"column:payload;type:blob;not null"`
	CachedAt      time.Time       `gorm:"column:cached_at;not null"`
}

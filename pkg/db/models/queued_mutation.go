package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/bluehorizon/skydesk/pkg/enums"
)

// QueuedMutation is a durable record of one pending remote write.
type QueuedMutation struct {
	ID            uuid.UUID            `gorm:"column:id;type:text;primaryKey"`
	OwnerIdentity string               `gorm:"column:owner_identity;not null"`
	Payload       json.RawMessage      `gorm:"column:payload;type:blob;not null"`
	Status        enums.MutationStatus `gorm:"column:status;not null"`
	Attempts      int                  `gorm:"column:attempts;not null;default:0"`
	NextRetryAt   time.Time            `gorm:"column:next_retry_at;not null"`
	LastError     string               `gorm:"column:last_error;not null;default:''"`
	CreatedAt     time.Time            `gorm:"column:created_at;not null"`
	UpdatedAt     time.Time            `gorm:"column:updated_at;not null"`
	SentAt        *time.Time           `gorm:"column:sent_at"`
}

func (QueuedMutation) TableName() string {
	return "outbox"
}

package models

import (
	"encoding/json"
	"time"
)

// Draft is the latest unsent composition for one context key.
type Draft struct {
	ContextKey string          `gorm:"column:context_key;primaryKey"`
	Payload    json.RawMessage `gorm:"column:payload;type:blob;not null"`
	CreatedAt  time.Time       `gorm:"column:created_at;not null"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;not null"`
}

func (Draft) TableName() string {
	return "drafts"
}

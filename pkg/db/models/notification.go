package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Notification is a user-facing message produced from dispatched events.
// Delivery failures are swallowed by the order core.
type Notification struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index"`
	EventType string          `gorm:"column:event_type;not null"`
	Payload   json.RawMessage `gorm:"column:payload;type:jsonb"`
	ReadAt    *time.Time      `gorm:"column:read_at"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

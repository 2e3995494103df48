package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/haiminhle/storefront-backend/pkg/enums"
)

// OutboxEvent is a transactional outbox row written in the same transaction
// as the state change it describes, then dispatched asynchronously.
type OutboxEvent struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;type:text;not null;index"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;type:text;not null"`
	AggregateID   uuid.UUID                 `gorm:"column:aggregate_id;type:uuid;not null;index"`
	Payload       json.RawMessage           `gorm:"column:payload;type:jsonb;not null"`
	Status        enums.OutboxStatus        `gorm:"column:status;type:text;not null;default:'pending';index"`
	Attempts      int                       `gorm:"column:attempts;not null;default:0"`
	LastError     *string                   `gorm:"column:last_error"`
	DispatchedAt  *time.Time                `gorm:"column:dispatched_at"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
}

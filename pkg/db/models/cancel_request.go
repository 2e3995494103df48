package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/haiminhle/storefront-backend/pkg/enums"
)

// CancelRequest is a customer's request to cancel an order. At most one open
// request may exist per order; resolved rows are immutable.
type CancelRequest struct {
	ID             uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index"`
	RequestedBy    uuid.UUID          `gorm:"column:requested_by;type:uuid;not null"`
	Reason         string             `gorm:"column:reason;not null"`
	Status         enums.CancelStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	ResolutionNote *string            `gorm:"column:resolution_note"`
	ResolvedBy     *uuid.UUID         `gorm:"column:resolved_by;type:uuid"`
	ResolvedAt     *time.Time         `gorm:"column:resolved_at"`
	CreatedAt      time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

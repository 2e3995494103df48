package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/haiminhle/storefront-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// ReturnRequest is a post-delivery return with its own workflow states and a
// fixed expiry window. A pending request past ExpiresAt is force-rejected on
// next access.
type ReturnRequest struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Code        string    `gorm:"column:code;not null;uniqueIndex"`
	OrderID     uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	RequestedBy uuid.UUID `gorm:"column:requested_by;type:uuid;not null"`

	Reason string   `gorm:"column:reason;not null"`
	Images []string `gorm:"column:images;type:jsonb;serializer:json"`

	RefundMethod enums.RefundMethod `gorm:"column:refund_method;type:text;not null"`
	RefundAmount decimal.Decimal    `gorm:"column:refund_amount;type:numeric(18,4);not null"`
	BankName     *string            `gorm:"column:bank_name"`
	BankAccount  *string            `gorm:"column:bank_account"`

	Status    enums.ReturnStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	ShipperID *uuid.UUID         `gorm:"column:shipper_id;type:uuid"`

	ExpiresAt      time.Time  `gorm:"column:expires_at;not null"`
	ResolutionNote *string    `gorm:"column:resolution_note"`
	ResolvedBy     *uuid.UUID `gorm:"column:resolved_by;type:uuid"`
	ResolvedAt     *time.Time `gorm:"column:resolved_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/haiminhle/storefront-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// InventoryTransaction is an append-only audit record of a stock mutation.
// Rows are never updated or deleted after creation.
type InventoryTransaction struct {
	ID               uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	StockItemID      uuid.UUID             `gorm:"column:stock_item_id;type:uuid;not null;index"`
	Type             enums.InventoryTxType `gorm:"column:type;type:text;not null"`
	QuantityDelta    int                   `gorm:"column:quantity_delta;not null"`
	UnitCost         decimal.Decimal       `gorm:"column:unit_cost;type:numeric(18,4);not null;default:0"`
	ResultingQty     int                   `gorm:"column:resulting_qty;not null"`
	ResultingAvgCost decimal.Decimal       `gorm:"column:resulting_avg_cost;type:numeric(18,4);not null;default:0"`
	Reason           enums.InventoryReason `gorm:"column:reason;type:text;not null"`
	ReferenceType    *string               `gorm:"column:reference_type"`
	ReferenceID      *string               `gorm:"column:reference_id;index"`
	ActorID          *uuid.UUID            `gorm:"column:actor_id;type:uuid"`
	CreatedAt        time.Time             `gorm:"column:created_at;autoCreateTime"`
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StockItem is the single logical ledger entry per (product, variant, size).
// Quantity and ReservedQty are mutated only through guarded updates; Version
// backs the compare-and-set loop for stock-in recomputation.
type StockItem struct {
	ID                  uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ProductID           uuid.UUID       `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_stock_items_sku,priority:1"`
	VariantID           uuid.UUID       `gorm:"column:variant_id;type:uuid;not null;uniqueIndex:ux_stock_items_sku,priority:2"`
	SizeID              uuid.UUID       `gorm:"column:size_id;type:uuid;not null;uniqueIndex:ux_stock_items_sku,priority:3"`
	Quantity            int             `gorm:"column:quantity;not null;default:0"`
	ReservedQty         int             `gorm:"column:reserved_qty;not null;default:0"`
	AverageCost         decimal.Decimal `gorm:"column:average_cost;type:numeric(18,4);not null;default:0"`
	SellingPrice        decimal.Decimal `gorm:"column:selling_price;type:numeric(18,4);not null;default:0"`
	FinalPrice          decimal.Decimal `gorm:"column:final_price;type:numeric(18,4);not null;default:0"`
	TargetProfitPercent decimal.Decimal `gorm:"column:target_profit_percent;type:numeric(7,4);not null;default:0"`
	PercentDiscount     decimal.Decimal `gorm:"column:percent_discount;type:numeric(7,4);not null;default:0"`
	LowStockThreshold   int             `gorm:"column:low_stock_threshold;not null;default:0"`
	Version             int64           `gorm:"column:version;not null;default:0"`
	CreatedAt           time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time       `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt           gorm.DeletedAt  `gorm:"column:deleted_at;index"`
}

// AvailableQty is the only quantity purchase-eligibility logic may see.
func (s StockItem) AvailableQty() int {
	return s.Quantity - s.ReservedQty
}

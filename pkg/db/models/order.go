package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/haiminhle/storefront-backend/pkg/enums"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StatusChange is one entry in an order's bounded status history log.
type StatusChange struct {
	Status    enums.OrderStatus `json:"status"`
	Note      string            `json:"note,omitempty"`
	ActorID   *uuid.UUID        `json:"actorId,omitempty"`
	ChangedAt time.Time         `json:"changedAt"`
}

// StatusHistory is the jsonb-serialized, capped append-only log.
type StatusHistory []StatusChange

// Order is the aggregate root for the order lifecycle. Status is mutated
// exclusively through guarded conditional updates; the boolean gates enforce
// once-only inventory and loyalty side effects.
type Order struct {
	ID     uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Code   string    `gorm:"column:code;not null;uniqueIndex"`
	UserID uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`

	Status enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending'"`

	PaymentMethod    enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	PaymentStatus    enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	PaymentRef       string              `gorm:"column:payment_ref;not null;uniqueIndex"`
	GatewayTxnID     *string             `gorm:"column:gateway_txn_id"`
	PaymentProcessed bool                `gorm:"column:payment_processed;not null;default:false"`
	PaidAt           *time.Time          `gorm:"column:paid_at"`

	ShippingAddress string          `gorm:"column:shipping_address;not null"`
	CouponCode      *string         `gorm:"column:coupon_code"`
	Subtotal        decimal.Decimal `gorm:"column:subtotal;type:numeric(18,4);not null;default:0"`
	ShippingFee     decimal.Decimal `gorm:"column:shipping_fee;type:numeric(18,4);not null;default:0"`
	Total           decimal.Decimal `gorm:"column:total;type:numeric(18,4);not null;default:0"`

	InventoryDeducted bool `gorm:"column:inventory_deducted;not null;default:false"`
	InventoryRestored bool `gorm:"column:inventory_restored;not null;default:false"`
	ReturnConfirmed   bool `gorm:"column:return_confirmed;not null;default:false"`
	LoyaltyAwarded    bool `gorm:"column:loyalty_awarded;not null;default:false"`
	LoyaltyPoints     int  `gorm:"column:loyalty_points;not null;default:0"`

	HasCancelRequest bool    `gorm:"column:has_cancel_request;not null;default:false"`
	CancelReason     *string `gorm:"column:cancel_reason"`

	History StatusHistory `gorm:"column:history;type:jsonb;serializer:json"`

	ShipperID *uuid.UUID `gorm:"column:shipper_id;type:uuid"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	DeliveredAt *time.Time     `gorm:"column:delivered_at"`
	CanceledAt  *time.Time     `gorm:"column:canceled_at"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt   gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

// OrderItem snapshots a purchased line at order time. UnitCost is the cost
// basis captured when the order was created, not a live ledger reference.
type OrderItem struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	VariantID uuid.UUID       `gorm:"column:variant_id;type:uuid;not null"`
	SizeID    uuid.UUID       `gorm:"column:size_id;type:uuid;not null"`
	Name      string          `gorm:"column:name;not null"`
	Qty       int             `gorm:"column:qty;not null"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(18,4);not null"`
	UnitCost  decimal.Decimal `gorm:"column:unit_cost;type:numeric(18,4);not null"`
	Total     decimal.Decimal `gorm:"column:total;type:numeric(18,4);not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

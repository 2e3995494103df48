package models

import (
	"time"

	"github.com/google/uuid"
)

// LoyaltyAccount holds a customer's point balance. The order core calls into
// it but does not own its invariants; balance never drops below zero.
type LoyaltyAccount struct {
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	Balance   int       `gorm:"column:balance;not null;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

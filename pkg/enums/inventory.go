package enums

import "fmt"

// InventoryTxType labels the direction of a ledger entry.
type InventoryTxType string

const (
	InventoryTxTypeIn     InventoryTxType = "in"
	InventoryTxTypeOut    InventoryTxType = "out"
	InventoryTxTypeAdjust InventoryTxType = "adjust"
)

var validInventoryTxTypes = []InventoryTxType{
	InventoryTxTypeIn,
	InventoryTxTypeOut,
	InventoryTxTypeAdjust,
}

// String implements fmt.Stringer.
func (t InventoryTxType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known InventoryTxType.
func (t InventoryTxType) IsValid() bool {
	for _, candidate := range validInventoryTxTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseInventoryTxType converts raw input into an InventoryTxType.
func ParseInventoryTxType(value string) (InventoryTxType, error) {
	for _, candidate := range validInventoryTxTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid inventory tx type %q", value)
}

// InventoryReason records why a ledger entry exists.
type InventoryReason string

const (
	InventoryReasonRestock    InventoryReason = "restock"
	InventoryReasonSale       InventoryReason = "sale"
	InventoryReasonReturn     InventoryReason = "return"
	InventoryReasonDamage     InventoryReason = "damage"
	InventoryReasonCancelled  InventoryReason = "cancelled"
	InventoryReasonRollback   InventoryReason = "rollback"
	InventoryReasonAdjustment InventoryReason = "adjustment"
	InventoryReasonStocktake  InventoryReason = "stocktake"
)

var validInventoryReasons = []InventoryReason{
	InventoryReasonRestock,
	InventoryReasonSale,
	InventoryReasonReturn,
	InventoryReasonDamage,
	InventoryReasonCancelled,
	InventoryReasonRollback,
	InventoryReasonAdjustment,
	InventoryReasonStocktake,
}

// String implements fmt.Stringer.
func (r InventoryReason) String() string {
	return string(r)
}

// IsValid reports whether the value is a known InventoryReason.
func (r InventoryReason) IsValid() bool {
	for _, candidate := range validInventoryReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseInventoryReason converts raw input into an InventoryReason.
func ParseInventoryReason(value string) (InventoryReason, error) {
	for _, candidate := range validInventoryReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid inventory reason %q", value)
}

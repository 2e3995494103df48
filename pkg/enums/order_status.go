package enums

import "fmt"

// OrderStatus tracks the lifecycle of a storefront order.
type OrderStatus string

const (
	OrderStatusPending              OrderStatus = "pending"
	OrderStatusConfirmed            OrderStatus = "confirmed"
	OrderStatusAssignedToShipper    OrderStatus = "assigned_to_shipper"
	OrderStatusOutForDelivery       OrderStatus = "out_for_delivery"
	OrderStatusDelivered            OrderStatus = "delivered"
	OrderStatusDeliveryFailed       OrderStatus = "delivery_failed"
	OrderStatusReturningToWarehouse OrderStatus = "returning_to_warehouse"
	OrderStatusCancelled            OrderStatus = "cancelled"
	OrderStatusReturned             OrderStatus = "returned"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusAssignedToShipper,
	OrderStatusOutForDelivery,
	OrderStatusDelivered,
	OrderStatusDeliveryFailed,
	OrderStatusReturningToWarehouse,
	OrderStatusCancelled,
	OrderStatusReturned,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCancelled || s == OrderStatusReturned
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}

package enums

import "fmt"

// OutboxEventType identifies domain events queued for dispatch.
type OutboxEventType string

const (
	EventOrderCreated        OutboxEventType = "order.created"
	EventOrderStatusChanged  OutboxEventType = "order.status_changed"
	EventOrderPaid           OutboxEventType = "order.paid"
	EventOrderPaymentFailed  OutboxEventType = "order.payment_failed"
	EventOrderCancelled      OutboxEventType = "order.cancelled"
	EventOrderDelivered      OutboxEventType = "order.delivered"
	EventOrderReturned       OutboxEventType = "order.returned"
	EventCancelRequested     OutboxEventType = "cancel_request.created"
	EventCancelResolved      OutboxEventType = "cancel_request.resolved"
	EventReturnRequested     OutboxEventType = "return_request.created"
	EventReturnStatusChanged OutboxEventType = "return_request.status_changed"
	EventStockLow            OutboxEventType = "stock.low"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderStatusChanged,
	EventOrderPaid,
	EventOrderPaymentFailed,
	EventOrderCancelled,
	EventOrderDelivered,
	EventOrderReturned,
	EventCancelRequested,
	EventCancelResolved,
	EventReturnRequested,
	EventReturnStatusChanged,
	EventStockLow,
}

// IsValid reports whether the value is a known OutboxEventType.
func (t OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into an OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox event type %q", value)
}

// OutboxAggregateType names the aggregate an event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder         OutboxAggregateType = "order"
	AggregateCancelRequest OutboxAggregateType = "cancel_request"
	AggregateReturnRequest OutboxAggregateType = "return_request"
	AggregateStockItem     OutboxAggregateType = "stock_item"
)

// OutboxStatus tracks dispatch progress of an outbox row.
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusDispatched OutboxStatus = "dispatched"
	OutboxStatusDead       OutboxStatus = "dead"
)

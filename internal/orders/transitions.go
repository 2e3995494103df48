package orders

import "github.com/haiminhle/storefront-backend/pkg/enums"

// allowedTransitions is the full order state graph. Entry into cancelled and
// returned is additionally restricted to the workflow services; see
// workflowOnlyTargets.
var allowedTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending: {
		enums.OrderStatusConfirmed,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusConfirmed: {
		enums.OrderStatusAssignedToShipper,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusAssignedToShipper: {
		enums.OrderStatusOutForDelivery,
	},
	enums.OrderStatusOutForDelivery: {
		enums.OrderStatusDelivered,
		enums.OrderStatusDeliveryFailed,
	},
	enums.OrderStatusDeliveryFailed: {
		enums.OrderStatusReturningToWarehouse,
	},
	enums.OrderStatusReturningToWarehouse: {
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusDelivered: {
		enums.OrderStatusReturned,
	},
}

// workflowOnlyTargets may never be set through the direct transition API;
// only the cancellation and return workflows enter them.
var workflowOnlyTargets = map[enums.OrderStatus]bool{
	enums.OrderStatusCancelled: true,
	enums.OrderStatusReturned:  true,
}

// CanTransition reports whether the state graph permits from -> to.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// IsWorkflowOnly reports whether the target status is reserved for the
// cancellation/return workflows.
func IsWorkflowOnly(to enums.OrderStatus) bool {
	return workflowOnlyTargets[to]
}

// IsFailedDeliveryCloseOut reports whether the transition is the staff
// close-out of a failed delivery. It is the one direct entry into cancelled:
// the cancellation workflow only accepts pending and confirmed orders, so an
// order back from a failed delivery would otherwise have no terminal state.
func IsFailedDeliveryCloseOut(from, to enums.OrderStatus) bool {
	return from == enums.OrderStatusReturningToWarehouse && to == enums.OrderStatusCancelled
}

package enums

import "fmt"

// ReturnStatus tracks a post-delivery return request.
type ReturnStatus string

const (
	ReturnStatusPending       ReturnStatus = "pending"
	ReturnStatusApproved      ReturnStatus = "approved"
	ReturnStatusShipping      ReturnStatus = "shipping"
	ReturnStatusReceived      ReturnStatus = "received"
	ReturnStatusRefunded      ReturnStatus = "refunded"
	ReturnStatusCompleted     ReturnStatus = "completed"
	ReturnStatusRejected      ReturnStatus = "rejected"
	ReturnStatusCancelPending ReturnStatus = "cancel_pending"
	ReturnStatusCanceled      ReturnStatus = "canceled"
)

var validReturnStatuses = []ReturnStatus{
	ReturnStatusPending,
	ReturnStatusApproved,
	ReturnStatusShipping,
	ReturnStatusReceived,
	ReturnStatusRefunded,
	ReturnStatusCompleted,
	ReturnStatusRejected,
	ReturnStatusCancelPending,
	ReturnStatusCanceled,
}

// String implements fmt.Stringer.
func (s ReturnStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ReturnStatus.
func (s ReturnStatus) IsValid() bool {
	for _, candidate := range validReturnStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the request can no longer progress.
func (s ReturnStatus) IsTerminal() bool {
	switch s {
	case ReturnStatusCompleted, ReturnStatusRejected, ReturnStatusCanceled:
		return true
	default:
		return false
	}
}

// ParseReturnStatus converts raw input into a ReturnStatus.
func ParseReturnStatus(value string) (ReturnStatus, error) {
	for _, candidate := range validReturnStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid return status %q", value)
}

// RefundMethod selects how a completed return is paid back.
type RefundMethod string

const (
	RefundMethodCash         RefundMethod = "cash"
	RefundMethodBankTransfer RefundMethod = "bank_transfer"
)

var validRefundMethods = []RefundMethod{
	RefundMethodCash,
	RefundMethodBankTransfer,
}

// String implements fmt.Stringer.
func (m RefundMethod) String() string {
	return string(m)
}

// IsValid reports whether the value is a known RefundMethod.
func (m RefundMethod) IsValid() bool {
	for _, candidate := range validRefundMethods {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseRefundMethod converts raw input into a RefundMethod.
func ParseRefundMethod(value string) (RefundMethod, error) {
	for _, candidate := range validRefundMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid refund method %q", value)
}

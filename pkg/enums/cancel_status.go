package enums

import "fmt"

// CancelStatus tracks a cancellation request.
type CancelStatus string

const (
	CancelStatusPending  CancelStatus = "pending"
	CancelStatusApproved CancelStatus = "approved"
	CancelStatusRejected CancelStatus = "rejected"
)

var validCancelStatuses = []CancelStatus{
	CancelStatusPending,
	CancelStatusApproved,
	CancelStatusRejected,
}

// String implements fmt.Stringer.
func (s CancelStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known CancelStatus.
func (s CancelStatus) IsValid() bool {
	for _, candidate := range validCancelStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseCancelStatus converts raw input into a CancelStatus.
func ParseCancelStatus(value string) (CancelStatus, error) {
	for _, candidate := range validCancelStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cancel status %q", value)
}

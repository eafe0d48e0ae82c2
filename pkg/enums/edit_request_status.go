package enums

import "fmt"

// EditRequestStatus tracks the adjudication state of a proposed edit.
type EditRequestStatus string

const (
	EditRequestStatusPending  EditRequestStatus = "pending"
	EditRequestStatusApproved EditRequestStatus = "approved"
	EditRequestStatusRejected EditRequestStatus = "rejected"
)

var validEditRequestStatuses = []EditRequestStatus{
	EditRequestStatusPending,
	EditRequestStatusApproved,
	EditRequestStatusRejected,
}

// String implements fmt.Stringer.
func (e EditRequestStatus) String() string {
	return string(e)
}

// IsValid reports whether the value is a known EditRequestStatus.
func (e EditRequestStatus) IsValid() bool {
	for _, candidate := range validEditRequestStatuses {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseEditRequestStatus converts raw input into an EditRequestStatus.
func ParseEditRequestStatus(value string) (EditRequestStatus, error) {
	for _, candidate := range validEditRequestStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid edit request status %q", value)
}

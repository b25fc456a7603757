package enums

import "fmt"

// MaterialRequestStatus maps to the material_request_status check constraint.
type MaterialRequestStatus string

const (
	MaterialRequestPending  MaterialRequestStatus = "pending"
	MaterialRequestApproved MaterialRequestStatus = "approved"
	MaterialRequestRejected MaterialRequestStatus = "rejected"
	MaterialRequestIssued   MaterialRequestStatus = "issued"
)

var validMaterialRequestStatuses = []MaterialRequestStatus{
	MaterialRequestPending,
	MaterialRequestApproved,
	MaterialRequestRejected,
	MaterialRequestIssued,
}

var materialRequestTransitions = map[MaterialRequestStatus][]MaterialRequestStatus{
	MaterialRequestPending:  {MaterialRequestApproved, MaterialRequestRejected},
	MaterialRequestApproved: {MaterialRequestIssued},
}

func (s MaterialRequestStatus) String() string {
	return string(s)
}

// IsValid reports whether the status is a known lifecycle state.
func (s MaterialRequestStatus) IsValid() bool {
	for _, candidate := range validMaterialRequestStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s MaterialRequestStatus) IsTerminal() bool {
	return s == MaterialRequestRejected || s == MaterialRequestIssued
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
func (s MaterialRequestStatus) CanTransitionTo(next MaterialRequestStatus) bool {
	for _, candidate := range materialRequestTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseMaterialRequestStatus converts raw input into a MaterialRequestStatus.
func ParseMaterialRequestStatus(value string) (MaterialRequestStatus, error) {
	for _, candidate := range validMaterialRequestStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid material request status %q", value)
}

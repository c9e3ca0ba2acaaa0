package enums

import "fmt"

// AllocationType decides whether an allocation is split into tiers.
type AllocationType string

const (
	AllocationTypeTier       AllocationType = "tier"
	AllocationTypeIndividual AllocationType = "individual"
)

var validAllocationTypes = []AllocationType{
	AllocationTypeTier,
	AllocationTypeIndividual,
}

// String implements fmt.Stringer.
func (a AllocationType) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AllocationType.
func (a AllocationType) IsValid() bool {
	for _, candidate := range validAllocationTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAllocationType converts raw input into an AllocationType.
func ParseAllocationType(value string) (AllocationType, error) {
	for _, candidate := range validAllocationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid allocation type %q", value)
}

// AllocationStatus captures the operator-driven allocation lifecycle.
type AllocationStatus string

const (
	AllocationStatusDraft     AllocationStatus = "draft"
	AllocationStatusScheduled AllocationStatus = "scheduled"
	AllocationStatusActive    AllocationStatus = "active"
	AllocationStatusCompleted AllocationStatus = "completed"
)

var validAllocationStatuses = []AllocationStatus{
	AllocationStatusDraft,
	AllocationStatusScheduled,
	AllocationStatusActive,
	AllocationStatusCompleted,
}

var allocationStatusTransitions = map[AllocationStatus][]AllocationStatus{
	AllocationStatusDraft:     {AllocationStatusScheduled},
	AllocationStatusScheduled: {AllocationStatusDraft, AllocationStatusActive},
	AllocationStatusActive:    {AllocationStatusCompleted},
}

// String implements fmt.Stringer.
func (s AllocationStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known AllocationStatus.
func (s AllocationStatus) IsValid() bool {
	for _, candidate := range validAllocationStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether the lifecycle allows moving to next.
func (s AllocationStatus) CanTransitionTo(next AllocationStatus) bool {
	for _, candidate := range allocationStatusTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseAllocationStatus converts raw input into an AllocationStatus.
func ParseAllocationStatus(value string) (AllocationStatus, error) {
	for _, candidate := range validAllocationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid allocation status %q", value)
}

package enums

import "fmt"

// OperatorRole scopes what a console operator may change.
type OperatorRole string

const (
	OperatorRoleAdmin  OperatorRole = "admin"
	OperatorRoleEditor OperatorRole = "editor"
	OperatorRoleViewer OperatorRole = "viewer"
)

var validOperatorRoles = []OperatorRole{
	OperatorRoleAdmin,
	OperatorRoleEditor,
	OperatorRoleViewer,
}

// String implements fmt.Stringer.
func (r OperatorRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known OperatorRole.
func (r OperatorRole) IsValid() bool {
	for _, candidate := range validOperatorRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// CanWrite reports whether the role may mutate allocations.
func (r OperatorRole) CanWrite() bool {
	return r == OperatorRoleAdmin || r == OperatorRoleEditor
}

// ParseOperatorRole converts raw input into an OperatorRole.
func ParseOperatorRole(value string) (OperatorRole, error) {
	for _, candidate := range validOperatorRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid operator role %q", value)
}

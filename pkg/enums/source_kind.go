package enums

import "fmt"

// SourceKind is a method of selecting customers for tier membership.
type SourceKind string

const (
	SourceKindQuery  SourceKind = "query"
	SourceKindTag    SourceKind = "tag"
	SourceKindGroup  SourceKind = "group"
	SourceKindClub   SourceKind = "club"
	SourceKindSearch SourceKind = "search"
)

var validSourceKinds = []SourceKind{
	SourceKindQuery,
	SourceKindTag,
	SourceKindGroup,
	SourceKindClub,
	SourceKindSearch,
}

// SourceKinds returns every known kind in display order.
func SourceKinds() []SourceKind {
	out := make([]SourceKind, len(validSourceKinds))
	copy(out, validSourceKinds)
	return out
}

// String implements fmt.Stringer.
func (k SourceKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known SourceKind.
func (k SourceKind) IsValid() bool {
	for _, candidate := range validSourceKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseSourceKind converts raw input into a SourceKind.
func ParseSourceKind(value string) (SourceKind, error) {
	for _, candidate := range validSourceKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid source kind %q", value)
}

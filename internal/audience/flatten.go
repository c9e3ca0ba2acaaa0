package audience

import (
	"context"

	"github.com/angelmondragon/allocations-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/allocations-backend/pkg/errors"
)

// StepResolveMembers tags errors raised while expanding source items.
const StepResolveMembers = "resolve_members"

// MemberResolver expands one source item into customer ids.
type MemberResolver interface {
	Members(ctx context.Context, kind enums.SourceKind, sourceID string) ([]string, error)
}

// Assignment is one membership row: a customer reached through one source item.
type Assignment struct {
	SourceType enums.SourceKind `json:"source_type"`
	SourceID   string           `json:"source_id"`
	CustomerID string           `json:"customer_id"`
}

// Flatten expands every selected item into assignments. Identical triples are
// emitted once; a customer reached through two items yields two assignments.
// Search items denote a customer directly and skip the resolver.
func Flatten(ctx context.Context, sel *Selection, resolver MemberResolver) ([]Assignment, error) {
	if sel == nil || sel.IsEmpty() {
		return nil, nil
	}

	seen := map[Assignment]struct{}{}
	var out []Assignment
	add := func(a Assignment) {
		if a.CustomerID == "" {
			return
		}
		if _, ok := seen[a]; ok {
			return
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}

	for _, kind := range sel.Kinds() {
		for _, item := range sel.Items(kind) {
			if kind == enums.SourceKindSearch {
				add(Assignment{SourceType: kind, SourceID: item.ID, CustomerID: item.ID})
				continue
			}
			if resolver == nil {
				return nil, pkgerrors.New(pkgerrors.CodeDependency, "member resolver not configured").
					WithDetails(map[string]any{"step": StepResolveMembers})
			}
			members, err := resolver.Members(ctx, kind, item.ID)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve source members").
					WithDetails(map[string]any{"step": StepResolveMembers, "source_type": kind, "source_id": item.ID})
			}
			for _, customerID := range members {
				add(Assignment{SourceType: kind, SourceID: item.ID, CustomerID: customerID})
			}
		}
	}
	return out, nil
}

// ExactCustomers counts distinct customers across assignments.
func ExactCustomers(assignments []Assignment) int {
	customers := make(map[string]struct{}, len(assignments))
	for _, a := range assignments {
		customers[a.CustomerID] = struct{}{}
	}
	return len(customers)
}

package audience

import (
	"fmt"

	"github.com/angelmondragon/allocations-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/allocations-backend/pkg/errors"
)

// Sources is the request form of a selection: chosen items keyed by kind.
type Sources map[enums.SourceKind][]Item

// SelectionFrom builds a selection from request input. Unknown kinds and items
// without an id are rejected.
func SelectionFrom(active enums.SourceKind, sources Sources) (*Selection, error) {
	if active == "" {
		active = enums.SourceKindTag
	}
	if !active.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown source kind %q", active))
	}
	sel := NewSelection(active)
	for kind, items := range sources {
		if !kind.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown source kind %q", kind))
		}
		for _, item := range items {
			if item.ID == "" {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "source item id is required").
					WithDetails(map[string]any{"source_type": kind})
			}
			sel.Add(kind, item)
		}
	}
	return sel, nil
}

// Sources returns the selection in request form.
func (s *Selection) Sources() Sources {
	out := make(Sources, len(s.items))
	for kind := range s.items {
		out[kind] = s.Items(kind)
	}
	return out
}

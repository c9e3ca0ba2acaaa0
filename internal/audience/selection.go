// Package audience builds tier memberships out of customer source selections.
package audience

import (
	"slices"

	"github.com/angelmondragon/allocations-backend/pkg/enums"
)

// Item is one selectable source entry (a tag, a club, a saved query...).
// Cardinality is the reported member count, nil when the source did not report one.
type Item struct {
	ID          string `json:"id" validate:"required"`
	Name        string `json:"name"`
	Cardinality *int   `json:"cardinality,omitempty"`
}

// Selection holds the chosen items per source kind plus the kind being edited.
// Switching the active kind never clears other kinds.
type Selection struct {
	active enums.SourceKind
	items  map[enums.SourceKind][]Item
}

func NewSelection(active enums.SourceKind) *Selection {
	return &Selection{active: active, items: map[enums.SourceKind][]Item{}}
}

func (s *Selection) ActiveKind() enums.SourceKind {
	return s.active
}

func (s *Selection) SetActiveKind(kind enums.SourceKind) {
	s.active = kind
}

// Toggle selects item under the active kind, or deselects it when already selected.
// It reports whether the item is selected afterwards.
func (s *Selection) Toggle(item Item) bool {
	if s.contains(s.active, item.ID) {
		s.Remove(s.active, item.ID)
		return false
	}
	s.Add(s.active, item)
	return true
}

// Add selects item under kind. Re-adding an id replaces the stored item.
func (s *Selection) Add(kind enums.SourceKind, item Item) {
	list := s.items[kind]
	if idx := indexOf(list, item.ID); idx >= 0 {
		list[idx] = item
		return
	}
	s.items[kind] = append(list, item)
}

// Remove deselects itemID under kind. A kind left without items is dropped.
func (s *Selection) Remove(kind enums.SourceKind, itemID string) {
	list := s.items[kind]
	idx := indexOf(list, itemID)
	if idx < 0 {
		return
	}
	list = slices.Delete(list, idx, idx+1)
	if len(list) == 0 {
		delete(s.items, kind)
		return
	}
	s.items[kind] = list
}

// Kinds lists the kinds holding at least one item, in display order.
func (s *Selection) Kinds() []enums.SourceKind {
	out := make([]enums.SourceKind, 0, len(s.items))
	for _, kind := range enums.SourceKinds() {
		if len(s.items[kind]) > 0 {
			out = append(out, kind)
		}
	}
	return out
}

// Items returns a copy of the items selected under kind.
func (s *Selection) Items(kind enums.SourceKind) []Item {
	return slices.Clone(s.items[kind])
}

func (s *Selection) IsEmpty() bool {
	return len(s.items) == 0
}

// TotalEstimatedCustomers sums item cardinalities across every kind. Overlaps are
// counted once per item; an item without a cardinality counts as 1.
func (s *Selection) TotalEstimatedCustomers() int {
	total := 0
	for _, list := range s.items {
		for _, item := range list {
			if item.Cardinality == nil {
				total++
				continue
			}
			total += *item.Cardinality
		}
	}
	return total
}

// UnknownCardinality counts items whose size had to be assumed.
func (s *Selection) UnknownCardinality() int {
	unknown := 0
	for _, list := range s.items {
		for _, item := range list {
			if item.Cardinality == nil {
				unknown++
			}
		}
	}
	return unknown
}

// Summary is the estimate shown while building a selection.
type Summary struct {
	ActiveKind         enums.SourceKind         `json:"active_kind"`
	Kinds              map[enums.SourceKind]int `json:"kinds"`
	EstimatedCustomers int                      `json:"estimated_customers"`
	UnknownCardinality int                      `json:"unknown_cardinality"`
}

func (s *Selection) Summary() Summary {
	kinds := make(map[enums.SourceKind]int, len(s.items))
	for kind, list := range s.items {
		kinds[kind] = len(list)
	}
	return Summary{
		ActiveKind:         s.active,
		Kinds:              kinds,
		EstimatedCustomers: s.TotalEstimatedCustomers(),
		UnknownCardinality: s.UnknownCardinality(),
	}
}

func (s *Selection) contains(kind enums.SourceKind, itemID string) bool {
	return indexOf(s.items[kind], itemID) >= 0
}

func indexOf(list []Item, itemID string) int {
	return slices.IndexFunc(list, func(item Item) bool { return item.ID == itemID })
}

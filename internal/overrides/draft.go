package overrides

import "maps"

// Draft holds product overrides for a tier that does not exist yet. Nothing is
// persisted; Save hands the whole set to onSave, which normally feeds it into
// tier creation.
type Draft struct {
	items  map[string]Fields
	onSave func(map[string]Fields)
}

func NewDraft(onSave func(map[string]Fields)) *Draft {
	return &Draft{items: map[string]Fields{}, onSave: onSave}
}

// Set stores or replaces the override of one product.
func (d *Draft) Set(productID string, fields Fields) {
	d.items[productID] = fields
}

// Remove drops the override of one product.
func (d *Draft) Remove(productID string) {
	delete(d.items, productID)
}

// List returns a copy of the current set.
func (d *Draft) List() map[string]Fields {
	return maps.Clone(d.items)
}

// Save validates the set and reports it through the callback.
func (d *Draft) Save() error {
	if err := ValidateSet(d.items); err != nil {
		return err
	}
	if d.onSave != nil {
		d.onSave(d.List())
	}
	return nil
}

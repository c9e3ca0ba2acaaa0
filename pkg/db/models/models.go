package models

// All lists every persisted model, in dependency order.
func All() []any {
	return []any{
		&Allocation{},
		&AllocationProduct{},
		&AllocationTier{},
		&TierOverride{},
		&TierProductOverride{},
		&CustomerTier{},
	}
}

// Package aggregates owns the cached per-tier counters (customer_count and
// has_product_overrides). Every mutation that can move them calls Refresh in
// the same transaction.
package aggregates

import (
	"context"

	"github.com/angelmondragon/allocations-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Reason names the mutation that triggered a refresh.
type Reason string

const (
	ReasonTierCreated           Reason = "tier_created"
	ReasonMembershipChanged     Reason = "membership_changed"
	ReasonProductOverridesSaved Reason = "product_overrides_saved"
)

// Snapshot is the state written by Refresh.
type Snapshot struct {
	CustomerCount       int
	HasProductOverrides bool
}

// Refresh recomputes the cached counters of one tier from the ground-truth rows.
// customer_count becomes the number of distinct member customers.
// has_product_overrides is raised when override rows exist or when the caller
// just saved an override set, and is never lowered.
func Refresh(ctx context.Context, tx *gorm.DB, tierID uuid.UUID, reason Reason) (*Snapshot, error) {
	db := tx.WithContext(ctx)

	var customers int64
	if err := db.Model(&models.CustomerTier{}).
		Where("tier_id = ?", tierID).
		Distinct("customer_id").
		Count(&customers).Error; err != nil {
		return nil, err
	}

	var overrideRows int64
	if err := db.Model(&models.TierProductOverride{}).
		Where("tier_id = ?", tierID).
		Count(&overrideRows).Error; err != nil {
		return nil, err
	}

	updates := map[string]any{"customer_count": int(customers)}
	if overrideRows > 0 || reason == ReasonProductOverridesSaved {
		updates["has_product_overrides"] = true
	}

	res := db.Model(&models.AllocationTier{}).Where("id = ?", tierID).Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	var tier models.AllocationTier
	if err := db.Select("customer_count", "has_product_overrides").
		Where("id = ?", tierID).
		First(&tier).Error; err != nil {
		return nil, err
	}
	return &Snapshot{CustomerCount: tier.CustomerCount, HasProductOverrides: tier.HasProductOverrides}, nil
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TierLevelConstraint names the unique index guarding (allocation_id, level).
const TierLevelConstraint = "ux_allocation_tiers_level"

// AllocationTier is a leveled subdivision of an allocation. CustomerCount and
// HasProductOverrides are cached aggregates owned by the tier refresh.
type AllocationTier struct {
	ID                  uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	AllocationID        uuid.UUID `gorm:"column:allocation_id;type:uuid;not null;uniqueIndex:ux_allocation_tiers_level,priority:1"`
	Name                string    `gorm:"column:name;not null"`
	Level               int       `gorm:"column:level;not null;uniqueIndex:ux_allocation_tiers_level,priority:2"`
	AccessStart         time.Time `gorm:"column:access_start;not null"`
	AccessEnd           time.Time `gorm:"column:access_end;not null"`
	CustomerCount       int       `gorm:"column:customer_count;not null;default:0"`
	HasProductOverrides bool      `gorm:"column:has_product_overrides;not null;default:false"`
	CreatedAt           time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (AllocationTier) TableName() string { return "allocation_tiers" }

func (t *AllocationTier) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

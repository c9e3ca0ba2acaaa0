package models

import (
	"time"

	"github.com/angelmondragon/allocations-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CustomerTier is one resolved membership row: a customer reached through one source item.
type CustomerTier struct {
	ID           uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	AllocationID uuid.UUID        `gorm:"column:allocation_id;type:uuid;not null;index"`
	TierID       uuid.UUID        `gorm:"column:tier_id;type:uuid;not null;index"`
	CustomerID   string           `gorm:"column:customer_id;not null"`
	SourceType   enums.SourceKind `gorm:"column:source_type;not null"`
	SourceID     string           `gorm:"column:source_id;not null"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime"`
}

func (CustomerTier) TableName() string { return "customer_tiers" }

func (c *CustomerTier) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

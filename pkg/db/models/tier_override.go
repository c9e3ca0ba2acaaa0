package models

import (
	"time"

	"github.com/angelmondragon/allocations-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TierOverride is the optional per-tier bundle replacing allocation defaults.
// Every column is nullable; a NULL column falls back to the allocation value.
type TierOverride struct {
	ID     uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	TierID uuid.UUID `gorm:"column:tier_id;type:uuid;not null;uniqueIndex:ux_tier_overrides_tier"`

	CartMin   *int             `gorm:"column:cart_min"`
	CartMax   *int             `gorm:"column:cart_max"`
	MinAmount *decimal.Decimal `gorm:"column:min_amount;type:numeric(12,2)"`

	DiscountType   *enums.DiscountType `gorm:"column:discount_type"`
	DiscountAmount *decimal.Decimal    `gorm:"column:discount_amount;type:numeric(12,2)"`

	ShippingMethod       *enums.ShippingMethod `gorm:"column:shipping_method"`
	ShippingDiscountType *enums.DiscountType   `gorm:"column:shipping_discount_type"`
	ShippingAmount       *decimal.Decimal      `gorm:"column:shipping_amount;type:numeric(12,2)"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (TierOverride) TableName() string { return "tier_overrides" }

func (o *TierOverride) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

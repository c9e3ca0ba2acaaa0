package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TierProductOverride replaces one product's defaults inside one tier.
type TierProductOverride struct {
	ID                uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	TierID            uuid.UUID        `gorm:"column:tier_id;type:uuid;not null;uniqueIndex:ux_tier_product_overrides_product,priority:1"`
	ProductID         string           `gorm:"column:product_id;not null;uniqueIndex:ux_tier_product_overrides_product,priority:2"`
	OverridePrice     *decimal.Decimal `gorm:"column:override_price;type:numeric(12,2)"`
	MinPurchase       *int             `gorm:"column:min_purchase"`
	MaxPurchase       *int             `gorm:"column:max_purchase"`
	AllowWishRequests *bool            `gorm:"column:allow_wish_requests"`
	WishRequestMin    *int             `gorm:"column:wish_request_min"`
	WishRequestMax    *int             `gorm:"column:wish_request_max"`
	CreatedAt         time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (TierProductOverride) TableName() string { return "tier_product_overrides" }

func (o *TierProductOverride) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

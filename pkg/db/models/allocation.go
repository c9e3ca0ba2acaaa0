package models

import (
	"time"

	"github.com/angelmondragon/allocations-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Allocation is a time-bounded campaign granting customers access to limited products.
// Requirement, discount and shipping columns are the defaults tiers override.
type Allocation struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	Name        string                 `gorm:"column:name;not null"`
	Description *string                `gorm:"column:description"`
	Type        enums.AllocationType   `gorm:"column:allocation_type;not null"`
	Status      enums.AllocationStatus `gorm:"column:status;not null"`
	StartsAt    time.Time              `gorm:"column:starts_at;not null"`
	EndsAt      time.Time              `gorm:"column:ends_at;not null"`

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

func (Allocation) TableName() string { return "allocations" }

func (a *Allocation) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

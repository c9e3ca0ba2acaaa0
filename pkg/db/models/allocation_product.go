package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AllocationProduct holds the product-level defaults that tier product overrides layer over.
type AllocationProduct struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	AllocationID      uuid.UUID       `gorm:"column:allocation_id;type:uuid;not null;uniqueIndex:ux_allocation_products_product,priority:1"`
	ProductID         string          `gorm:"column:product_id;not null;uniqueIndex:ux_allocation_products_product,priority:2"`
	Name              string          `gorm:"column:name;not null"`
	Price             decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	MinPurchase       *int            `gorm:"column:min_purchase"`
	MaxPurchase       *int            `gorm:"column:max_purchase"`
	AllowWishRequests bool            `gorm:"column:allow_wish_requests;not null;default:false"`
	WishRequestMin    *int            `gorm:"column:wish_request_min"`
	WishRequestMax    *int            `gorm:"column:wish_request_max"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (AllocationProduct) TableName() string { return "allocation_products" }

func (p *AllocationProduct) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

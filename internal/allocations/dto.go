package allocations

import (
	"time"

	"github.com/angelmondragon/allocations-backend/internal/overrides"
	"github.com/angelmondragon/allocations-backend/pkg/db/models"
	"github.com/angelmondragon/allocations-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AllocationDTO struct {
	ID          uuid.UUID              `json:"id"`
	Name        string                 `json:"name"`
	Description *string                `json:"description,omitempty"`
	Type        enums.AllocationType   `json:"type"`
	Status      enums.AllocationStatus `json:"status"`
	StartsAt    time.Time              `json:"starts_at"`
	EndsAt      time.Time              `json:"ends_at"`
	Terms       overrides.Terms        `json:"terms"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

type ProductDTO struct {
	ID                uuid.UUID       `json:"id"`
	ProductID         string          `json:"product_id"`
	Name              string          `json:"name"`
	Price             decimal.Decimal `json:"price"`
	MinPurchase       *int            `json:"min_purchase"`
	MaxPurchase       *int            `json:"max_purchase"`
	AllowWishRequests bool            `json:"allow_wish_requests"`
	WishRequestMin    *int            `json:"wish_request_min"`
	WishRequestMax    *int            `json:"wish_request_max"`
}

type OverviewTier struct {
	ID                  uuid.UUID `json:"id"`
	Name                string    `json:"name"`
	Level               int       `json:"level"`
	AccessStart         time.Time `json:"access_start"`
	AccessEnd           time.Time `json:"access_end"`
	CustomerCount       int       `json:"customer_count"`
	HasProductOverrides bool      `json:"has_product_overrides"`
}

// Overview is the allocation detail view: defaults, ordered tiers and progress.
type Overview struct {
	Allocation AllocationDTO          `json:"allocation"`
	Display    overrides.TermsDisplay `json:"display"`
	Tiers      []OverviewTier         `json:"tiers"`
	Summary    TypeSummary            `json:"summary"`
	Progress   int                    `json:"progress"`
}

func allocationDTO(m models.Allocation) AllocationDTO {
	return AllocationDTO{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		Type:        m.Type,
		Status:      m.Status,
		StartsAt:    m.StartsAt,
		EndsAt:      m.EndsAt,
		Terms:       overrides.AllocationTerms(&m),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func productDTO(m models.AllocationProduct) ProductDTO {
	return ProductDTO{
		ID:                m.ID,
		ProductID:         m.ProductID,
		Name:              m.Name,
		Price:             m.Price,
		MinPurchase:       m.MinPurchase,
		MaxPurchase:       m.MaxPurchase,
		AllowWishRequests: m.AllowWishRequests,
		WishRequestMin:    m.WishRequestMin,
		WishRequestMax:    m.WishRequestMax,
	}
}

func overviewTiers(rows []models.AllocationTier) []OverviewTier {
	out := make([]OverviewTier, 0, len(rows))
	for _, row := range rows {
		out = append(out, OverviewTier{
			ID:                  row.ID,
			Name:                row.Name,
			Level:               row.Level,
			AccessStart:         row.AccessStart,
			AccessEnd:           row.AccessEnd,
			CustomerCount:       row.CustomerCount,
			HasProductOverrides: row.HasProductOverrides,
		})
	}
	return out
}

// applyTerms copies default terms onto the allocation row.
func applyTerms(m *models.Allocation, t overrides.Terms) {
	m.CartMin = t.Requirements.CartMin
	m.CartMax = t.Requirements.CartMax
	m.MinAmount = t.Requirements.MinAmount
	m.DiscountType = t.Discount.Type
	m.DiscountAmount = t.Discount.Amount
	m.ShippingMethod = t.Shipping.Method
	m.ShippingDiscountType = t.Shipping.Type
	m.ShippingAmount = t.Shipping.Amount
}

package overrides

import (
	"time"

	"github.com/angelmondragon/allocations-backend/pkg/db/models"
	"github.com/google/uuid"
)

type ProductOverrideDTO struct {
	ProductID string    `json:"product_id"`
	Fields    Fields    `json:"fields"`
	UpdatedAt time.Time `json:"updated_at"`
}

type BundleDTO struct {
	TierID              uuid.UUID `json:"tier_id"`
	Exists              bool      `json:"exists"`
	Terms               Terms     `json:"terms"`
	HasProductOverrides bool      `json:"has_product_overrides"`
}

// TermsDisplay is the presentation form of resolved amounts.
type TermsDisplay struct {
	MinAmount      string `json:"min_amount"`
	DiscountAmount string `json:"discount_amount"`
	ShippingAmount string `json:"shipping_amount"`
}

type TierTermsDTO struct {
	TierID       uuid.UUID      `json:"tier_id"`
	AllocationID uuid.UUID      `json:"allocation_id"`
	Terms        Terms          `json:"terms"`
	Display      TermsDisplay   `json:"display"`
	Products     []ProductTerms `json:"products"`
}

func productOverrideDTO(m models.TierProductOverride) ProductOverrideDTO {
	return ProductOverrideDTO{
		ProductID: m.ProductID,
		Fields:    FieldsFromModel(m),
		UpdatedAt: m.UpdatedAt,
	}
}

func productOverrideMap(rows []models.TierProductOverride) map[string]ProductOverrideDTO {
	out := make(map[string]ProductOverrideDTO, len(rows))
	for _, row := range rows {
		out[row.ProductID] = productOverrideDTO(row)
	}
	return out
}

func displayTerms(t Terms) TermsDisplay {
	return TermsDisplay{
		MinAmount:      FormatAmount(t.Requirements.MinAmount),
		DiscountAmount: FormatAmount(t.Discount.Amount),
		ShippingAmount: FormatAmount(t.Shipping.Amount),
	}
}

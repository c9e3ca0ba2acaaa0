package overrides

import (
	"sort"
	"strings"

	"github.com/angelmondragon/allocations-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/allocations-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Fields are the optional per-product values a tier can override.
type Fields struct {
	OverridePrice     *decimal.Decimal `json:"override_price"`
	MinPurchase       *int             `json:"min_purchase"`
	MaxPurchase       *int             `json:"max_purchase"`
	AllowWishRequests *bool            `json:"allow_wish_requests"`
	WishRequestMin    *int             `json:"wish_request_min"`
	WishRequestMax    *int             `json:"wish_request_max"`
}

// Validate rejects negative values and inverted bounds.
func (f Fields) Validate() error {
	problems := map[string]string{}
	if f.OverridePrice != nil && f.OverridePrice.IsNegative() {
		problems["override_price"] = "must not be negative"
	}
	checkBounds(problems, "purchase", f.MinPurchase, f.MaxPurchase)
	checkBounds(problems, "wish_request", f.WishRequestMin, f.WishRequestMax)
	if len(problems) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid product override").WithDetails(problems)
	}
	return nil
}

func checkBounds(problems map[string]string, name string, min, max *int) {
	if min != nil && *min < 0 {
		problems[name+"_min"] = "must not be negative"
	}
	if max != nil && *max < 0 {
		problems[name+"_max"] = "must not be negative"
	}
	if min != nil && max != nil && *min > *max {
		problems[name] = "min must not exceed max"
	}
}

// ToModel builds the persisted row for one product in one tier.
func (f Fields) ToModel(tierID uuid.UUID, productID string) models.TierProductOverride {
	return models.TierProductOverride{
		TierID:            tierID,
		ProductID:         productID,
		OverridePrice:     f.OverridePrice,
		MinPurchase:       f.MinPurchase,
		MaxPurchase:       f.MaxPurchase,
		AllowWishRequests: f.AllowWishRequests,
		WishRequestMin:    f.WishRequestMin,
		WishRequestMax:    f.WishRequestMax,
	}
}

// FieldsFromModel is the inverse of ToModel.
func FieldsFromModel(m models.TierProductOverride) Fields {
	return Fields{
		OverridePrice:     m.OverridePrice,
		MinPurchase:       m.MinPurchase,
		MaxPurchase:       m.MaxPurchase,
		AllowWishRequests: m.AllowWishRequests,
		WishRequestMin:    m.WishRequestMin,
		WishRequestMax:    m.WishRequestMax,
	}
}

// ValidateSet validates every entry of an override set.
func ValidateSet(set map[string]Fields) error {
	for _, productID := range sortedKeys(set) {
		if productID == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
		}
		if strings.TrimSpace(productID) != productID {
			return pkgerrors.New(pkgerrors.CodeValidation, "product id must not have surrounding spaces").
				WithDetails(map[string]any{"product_id": productID})
		}
		if err := set[productID].Validate(); err != nil {
			if typed := pkgerrors.As(err); typed != nil {
				return pkgerrors.New(typed.Code(), typed.Message()).
					WithDetails(map[string]any{"product_id": productID, "fields": typed.Details()})
			}
			return err
		}
	}
	return nil
}

// Rows converts an override set into rows for one tier, ordered by product id.
func Rows(tierID uuid.UUID, set map[string]Fields) []models.TierProductOverride {
	rows := make([]models.TierProductOverride, 0, len(set))
	for _, productID := range sortedKeys(set) {
		rows = append(rows, set[productID].ToModel(tierID, productID))
	}
	return rows
}

func sortedKeys(set map[string]Fields) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package overrides

import (
	"fmt"

	pkgerrors "github.com/angelmondragon/allocations-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

// OrderLine is a priced line built from effective product terms.
type OrderLine struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Total     decimal.Decimal `json:"total"`
}

// BuildOrderLine prices quantity units of a product and enforces the effective purchase bounds.
func BuildOrderLine(terms ProductTerms, quantity int) (*OrderLine, error) {
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if terms.MinPurchase != nil && quantity < *terms.MinPurchase {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("minimum purchase for %s is %d", terms.ProductID, *terms.MinPurchase)).
			WithDetails(map[string]any{"product_id": terms.ProductID, "min_purchase": *terms.MinPurchase})
	}
	if terms.MaxPurchase != nil && quantity > *terms.MaxPurchase {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("maximum purchase for %s is %d", terms.ProductID, *terms.MaxPurchase)).
			WithDetails(map[string]any{"product_id": terms.ProductID, "max_purchase": *terms.MaxPurchase})
	}
	return &OrderLine{
		ProductID: terms.ProductID,
		Quantity:  quantity,
		UnitPrice: terms.Price,
		Total:     terms.Price.Mul(decimal.NewFromInt(int64(quantity))),
	}, nil
}

package overrides

import (
	"github.com/angelmondragon/allocations-backend/pkg/db/models"
	"github.com/angelmondragon/allocations-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// NoneLabel is how an absent amount is rendered.
const NoneLabel = "None"

// Resolve returns override when it is set and base otherwise.
func Resolve[T any](base, override *T) *T {
	if override != nil {
		return override
	}
	return base
}

// ResolveBool falls back to the product default when the override is unset.
func ResolveBool(productDefault bool, override *bool) bool {
	if override != nil {
		return *override
	}
	return productDefault
}

// Requirements are the purchase requirements of an allocation or tier.
type Requirements struct {
	CartMin   *int             `json:"cart_min"`
	CartMax   *int             `json:"cart_max"`
	MinAmount *decimal.Decimal `json:"min_amount"`
}

// Discount is an order-level discount. Type and Amount resolve independently.
type Discount struct {
	Type   *enums.DiscountType `json:"type"`
	Amount *decimal.Decimal    `json:"amount"`
}

// Shipping is a shipping discount for one fulfillment method.
type Shipping struct {
	Method *enums.ShippingMethod `json:"method"`
	Type   *enums.DiscountType   `json:"type"`
	Amount *decimal.Decimal      `json:"amount"`
}

// Terms groups the allocation-level values a tier bundle can override.
type Terms struct {
	Requirements Requirements `json:"requirements"`
	Discount     Discount     `json:"discount"`
	Shipping     Shipping     `json:"shipping"`
}

func EffectiveRequirements(base, override Requirements) Requirements {
	return Requirements{
		CartMin:   Resolve(base.CartMin, override.CartMin),
		CartMax:   Resolve(base.CartMax, override.CartMax),
		MinAmount: Resolve(base.MinAmount, override.MinAmount),
	}
}

func EffectiveDiscount(base, override Discount) Discount {
	return Discount{
		Type:   Resolve(base.Type, override.Type),
		Amount: Resolve(base.Amount, override.Amount),
	}
}

func EffectiveShipping(base, override Shipping) Shipping {
	return Shipping{
		Method: Resolve(base.Method, override.Method),
		Type:   Resolve(base.Type, override.Type),
		Amount: Resolve(base.Amount, override.Amount),
	}
}

// ResolveTerms layers a tier bundle over allocation defaults. A nil bundle keeps the defaults.
func ResolveTerms(defaults Terms, bundle *Terms) Terms {
	if bundle == nil {
		return defaults
	}
	return Terms{
		Requirements: EffectiveRequirements(defaults.Requirements, bundle.Requirements),
		Discount:     EffectiveDiscount(defaults.Discount, bundle.Discount),
		Shipping:     EffectiveShipping(defaults.Shipping, bundle.Shipping),
	}
}

// FormatAmount renders an optional amount with two decimals, or NoneLabel when absent.
func FormatAmount(amount *decimal.Decimal) string {
	if amount == nil {
		return NoneLabel
	}
	return amount.StringFixed(2)
}

// AllocationTerms extracts the default terms stored on an allocation.
func AllocationTerms(a *models.Allocation) Terms {
	if a == nil {
		return Terms{}
	}
	return Terms{
		Requirements: Requirements{CartMin: a.CartMin, CartMax: a.CartMax, MinAmount: a.MinAmount},
		Discount:     Discount{Type: a.DiscountType, Amount: a.DiscountAmount},
		Shipping:     Shipping{Method: a.ShippingMethod, Type: a.ShippingDiscountType, Amount: a.ShippingAmount},
	}
}

// BundleTerms extracts the override terms stored on a tier bundle. A nil row yields nil.
func BundleTerms(o *models.TierOverride) *Terms {
	if o == nil {
		return nil
	}
	return &Terms{
		Requirements: Requirements{CartMin: o.CartMin, CartMax: o.CartMax, MinAmount: o.MinAmount},
		Discount:     Discount{Type: o.DiscountType, Amount: o.DiscountAmount},
		Shipping:     Shipping{Method: o.ShippingMethod, Type: o.ShippingDiscountType, Amount: o.ShippingAmount},
	}
}

// ProductTerms are the effective per-product values inside one tier.
type ProductTerms struct {
	ProductID         string          `json:"product_id"`
	Name              string          `json:"name"`
	Price             decimal.Decimal `json:"price"`
	MinPurchase       *int            `json:"min_purchase"`
	MaxPurchase       *int            `json:"max_purchase"`
	AllowWishRequests bool            `json:"allow_wish_requests"`
	WishRequestMin    *int            `json:"wish_request_min"`
	WishRequestMax    *int            `json:"wish_request_max"`
	Overridden        bool            `json:"overridden"`
}

// EffectiveProduct layers an optional tier override over the product defaults.
func EffectiveProduct(product models.AllocationProduct, override *models.TierProductOverride) ProductTerms {
	price := product.Price
	out := ProductTerms{
		ProductID:         product.ProductID,
		Name:              product.Name,
		Price:             price,
		MinPurchase:       product.MinPurchase,
		MaxPurchase:       product.MaxPurchase,
		AllowWishRequests: product.AllowWishRequests,
		WishRequestMin:    product.WishRequestMin,
		WishRequestMax:    product.WishRequestMax,
	}
	if override == nil {
		return out
	}
	out.Overridden = true
	out.Price = *Resolve(&price, override.OverridePrice)
	out.MinPurchase = Resolve(product.MinPurchase, override.MinPurchase)
	out.MaxPurchase = Resolve(product.MaxPurchase, override.MaxPurchase)
	out.AllowWishRequests = ResolveBool(product.AllowWishRequests, override.AllowWishRequests)
	out.WishRequestMin = Resolve(product.WishRequestMin, override.WishRequestMin)
	out.WishRequestMax = Resolve(product.WishRequestMax, override.WishRequestMax)
	return out
}

package overrides

import (
	"testing"

	"github.com/angelmondragon/allocations-backend/pkg/db/models"
	"github.com/angelmondragon/allocations-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/allocations-backend/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestResolveIsPerField(t *testing.T) {
	base := Requirements{CartMin: ptr(5)}
	override := Requirements{CartMax: ptr(10)}

	got := EffectiveRequirements(base, override)
	require.NotNil(t, got.CartMin)
	require.NotNil(t, got.CartMax)
	assert.Equal(t, 5, *got.CartMin)
	assert.Equal(t, 10, *got.CartMax)
	assert.Nil(t, got.MinAmount)
}

func TestResolvePrefersOverride(t *testing.T) {
	assert.Equal(t, 3, *Resolve(ptr(1), ptr(3)))
	assert.Equal(t, 1, *Resolve(ptr(1), nil))
	assert.Nil(t, Resolve[int](nil, nil))

	zero := 0
	assert.Equal(t, 0, *Resolve(ptr(7), &zero), "a zero override is still an override")
}

func TestResolveBoolFallsBackToProductDefault(t *testing.T) {
	assert.True(t, ResolveBool(true, nil))
	assert.False(t, ResolveBool(false, nil))
	assert.False(t, ResolveBool(true, ptr(false)))
	assert.True(t, ResolveBool(false, ptr(true)))
}

func TestDiscountResolvesWithoutPairValidation(t *testing.T) {
	percentage := enums.DiscountTypePercentage
	base := Discount{Type: &percentage, Amount: ptr(decimal.NewFromInt(10))}
	fixed := enums.DiscountTypeFixed

	got := EffectiveDiscount(base, Discount{Type: &fixed})
	assert.Equal(t, enums.DiscountTypeFixed, *got.Type)
	assert.Equal(t, "10.00", FormatAmount(got.Amount))

	got = EffectiveDiscount(Discount{}, Discount{Type: &fixed})
	assert.Equal(t, NoneLabel, FormatAmount(got.Amount))
}

func TestResolveTermsNilBundleKeepsDefaults(t *testing.T) {
	defaults := Terms{Requirements: Requirements{CartMin: ptr(2)}}
	assert.Equal(t, defaults, ResolveTerms(defaults, nil))

	ground := enums.ShippingMethodGround
	got := ResolveTerms(defaults, &Terms{Shipping: Shipping{Method: &ground}})
	assert.Equal(t, 2, *got.Requirements.CartMin)
	assert.Equal(t, enums.ShippingMethodGround, *got.Shipping.Method)
}

func TestEffectiveProduct(t *testing.T) {
	product := models.AllocationProduct{
		ProductID:         "cab-2019",
		Name:              "Cabernet 2019",
		Price:             decimal.RequireFromString("85.00"),
		MinPurchase:       ptr(1),
		MaxPurchase:       ptr(6),
		AllowWishRequests: true,
		WishRequestMax:    ptr(12),
	}

	plain := EffectiveProduct(product, nil)
	assert.False(t, plain.Overridden)
	assert.True(t, plain.Price.Equal(product.Price))

	got := EffectiveProduct(product, &models.TierProductOverride{
		OverridePrice: ptr(decimal.RequireFromString("70.00")),
		MaxPurchase:   ptr(3),
	})
	assert.True(t, got.Overridden)
	assert.Equal(t, "70", got.Price.String())
	assert.Equal(t, 1, *got.MinPurchase)
	assert.Equal(t, 3, *got.MaxPurchase)
	assert.True(t, got.AllowWishRequests, "unset override keeps the product default")
	assert.Equal(t, 12, *got.WishRequestMax)
}

func TestBuildOrderLine(t *testing.T) {
	terms := ProductTerms{ProductID: "cab-2019", Price: decimal.RequireFromString("70.00"), MinPurchase: ptr(2), MaxPurchase: ptr(3)}

	line, err := BuildOrderLine(terms, 3)
	require.NoError(t, err)
	assert.Equal(t, "210", line.Total.String())

	_, err = BuildOrderLine(terms, 1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = BuildOrderLine(terms, 4)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = BuildOrderLine(terms, 0)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestFieldsValidate(t *testing.T) {
	require.NoError(t, Fields{MinPurchase: ptr(1), MaxPurchase: ptr(1)}.Validate())
	assert.Error(t, Fields{MinPurchase: ptr(3), MaxPurchase: ptr(1)}.Validate())
	assert.Error(t, Fields{WishRequestMin: ptr(-1)}.Validate())
	assert.Error(t, Fields{OverridePrice: ptr(decimal.NewFromInt(-1))}.Validate())

	err := ValidateSet(map[string]Fields{"p1": {}, "p2": {MinPurchase: ptr(5), MaxPurchase: ptr(2)}})
	require.Error(t, err)
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "p2", details["product_id"])
}

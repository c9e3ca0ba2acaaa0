package overrides

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/allocations-backend/internal/aggregates"
	"github.com/angelmondragon/allocations-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/allocations-backend/pkg/errors"
	"github.com/angelmondragon/allocations-backend/pkg/logger"
	"github.com/angelmondragon/allocations-backend/pkg/metrics"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	stepUpsertBundle           = "upsert_override_bundle"
	stepUpsertProductOverride  = "upsert_product_override"
	stepDeleteProductOverrides = "delete_product_overrides"
	stepInsertProductOverrides = "insert_product_overrides"
	stepRefreshAggregates      = "refresh_aggregates"
)

// Store is the override persistence shared by the override and tier services.
type Store interface {
	WithTx(tx *gorm.DB) Store
	FindTier(ctx context.Context, tierID uuid.UUID) (*models.AllocationTier, error)
	FindAllocation(ctx context.Context, allocationID uuid.UUID) (*models.Allocation, error)
	ListAllocationProducts(ctx context.Context, allocationID uuid.UUID) ([]models.AllocationProduct, error)
	GetBundle(ctx context.Context, tierID uuid.UUID) (*models.TierOverride, error)
	UpsertBundle(ctx context.Context, bundle *models.TierOverride) error
	DeleteBundle(ctx context.Context, tierID uuid.UUID) error
	ListProductOverrides(ctx context.Context, tierID uuid.UUID) ([]models.TierProductOverride, error)
	UpsertProductOverride(ctx context.Context, row *models.TierProductOverride) error
	InsertProductOverrides(ctx context.Context, rows []models.TierProductOverride) error
	DeleteProductOverrides(ctx context.Context, tierID uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages overrides of existing tiers (edit mode).
type Service interface {
	SetOverride(ctx context.Context, tierID uuid.UUID, productID string, fields Fields) (*ProductOverrideDTO, error)
	ListOverrides(ctx context.Context, tierID uuid.UUID) (map[string]ProductOverrideDTO, error)
	SaveProductOverrides(ctx context.Context, tierID uuid.UUID, set map[string]Fields) (map[string]ProductOverrideDTO, error)
	SaveBundle(ctx context.Context, tierID uuid.UUID, bundle Terms) (*BundleDTO, error)
	GetBundle(ctx context.Context, tierID uuid.UUID) (*BundleDTO, error)
	EffectiveTerms(ctx context.Context, tierID uuid.UUID) (*TierTermsDTO, error)
}

// ServiceParams wires the override service.
type ServiceParams struct {
	Repo    Store
	Tx      txRunner
	Logger  *logger.Logger
	Metrics *metrics.OperationMetrics
}

type service struct {
	repo    Store
	tx      txRunner
	logg    *logger.Logger
	metrics *metrics.OperationMetrics
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("overrides repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		logg:    params.Logger,
		metrics: params.Metrics,
	}, nil
}

func (s *service) SetOverride(ctx context.Context, tierID uuid.UUID, productID string, fields Fields) (*ProductOverrideDTO, error) {
	if productID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if err := fields.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.loadTier(ctx, tierID); err != nil {
		return nil, err
	}

	started := time.Now()
	var saved *models.TierProductOverride
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		row := fields.ToModel(tierID, productID)
		if err := repo.UpsertProductOverride(ctx, &row); err != nil {
			return pkgerrors.Persistence(err, stepUpsertProductOverride)
		}
		if _, err := aggregates.Refresh(ctx, tx, tierID, aggregates.ReasonProductOverridesSaved); err != nil {
			return pkgerrors.Persistence(err, stepRefreshAggregates)
		}
		rows, err := repo.ListProductOverrides(ctx, tierID)
		if err != nil {
			return pkgerrors.Persistence(err, stepUpsertProductOverride)
		}
		for i := range rows {
			if rows[i].ProductID == productID {
				saved = &rows[i]
			}
		}
		return nil
	})
	s.metrics.Observe(metrics.OpOverridesSave, started, err)
	if err != nil {
		return nil, s.logFailure(ctx, tierID, "set product override failed", err)
	}
	if saved == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "product override missing after save")
	}
	dto := productOverrideDTO(*saved)
	return &dto, nil
}

// ListOverrides never fails for an unknown or deleted tier; it returns an empty mapping.
func (s *service) ListOverrides(ctx context.Context, tierID uuid.UUID) (map[string]ProductOverrideDTO, error) {
	rows, err := s.repo.ListProductOverrides(ctx, tierID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list product overrides")
	}
	return productOverrideMap(rows), nil
}

// SaveProductOverrides replaces the whole override set of a tier. An empty set clears it.
func (s *service) SaveProductOverrides(ctx context.Context, tierID uuid.UUID, set map[string]Fields) (map[string]ProductOverrideDTO, error) {
	if err := ValidateSet(set); err != nil {
		return nil, err
	}
	if _, err := s.loadTier(ctx, tierID); err != nil {
		return nil, err
	}

	started := time.Now()
	var rows []models.TierProductOverride
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.DeleteProductOverrides(ctx, tierID); err != nil {
			return pkgerrors.Persistence(err, stepDeleteProductOverrides)
		}
		if err := repo.InsertProductOverrides(ctx, Rows(tierID, set)); err != nil {
			return pkgerrors.Persistence(err, stepInsertProductOverrides)
		}
		if _, err := aggregates.Refresh(ctx, tx, tierID, aggregates.ReasonProductOverridesSaved); err != nil {
			return pkgerrors.Persistence(err, stepRefreshAggregates)
		}
		var err error
		rows, err = repo.ListProductOverrides(ctx, tierID)
		if err != nil {
			return pkgerrors.Persistence(err, stepInsertProductOverrides)
		}
		return nil
	})
	s.metrics.Observe(metrics.OpOverridesSave, started, err)
	if err != nil {
		return nil, s.logFailure(ctx, tierID, "save product overrides failed", err)
	}

	ctx = s.logg.WithFields(s.logg.WithTierID(ctx, tierID.String()), map[string]any{"overrides": len(rows)})
	s.logg.Info(ctx, "product overrides saved")
	return productOverrideMap(rows), nil
}

func (s *service) SaveBundle(ctx context.Context, tierID uuid.UUID, bundle Terms) (*BundleDTO, error) {
	if err := ValidateTerms(bundle); err != nil {
		return nil, err
	}
	tier, err := s.loadTier(ctx, tierID)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	row := BundleModel(tierID, bundle)
	err = s.repo.UpsertBundle(ctx, &row)
	if err != nil {
		err = pkgerrors.Persistence(err, stepUpsertBundle)
	}
	s.metrics.Observe(metrics.OpBundleSave, started, err)
	if err != nil {
		return nil, s.logFailure(ctx, tierID, "save override bundle failed", err)
	}
	return &BundleDTO{TierID: tierID, Exists: true, Terms: bundle, HasProductOverrides: tier.HasProductOverrides}, nil
}

// GetBundle returns an empty bundle when the tier has none.
func (s *service) GetBundle(ctx context.Context, tierID uuid.UUID) (*BundleDTO, error) {
	tier, err := s.loadTier(ctx, tierID)
	if err != nil {
		return nil, err
	}
	row, err := s.repo.GetBundle(ctx, tierID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &BundleDTO{TierID: tierID, HasProductOverrides: tier.HasProductOverrides}, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load override bundle")
	}
	return &BundleDTO{
		TierID:              tierID,
		Exists:              true,
		Terms:               *BundleTerms(row),
		HasProductOverrides: tier.HasProductOverrides,
	}, nil
}

// EffectiveTerms resolves allocation and product terms as seen by members of one tier.
// Tier overrides for one tier load with one query, independent of other tiers.
func (s *service) EffectiveTerms(ctx context.Context, tierID uuid.UUID) (*TierTermsDTO, error) {
	tier, err := s.loadTier(ctx, tierID)
	if err != nil {
		return nil, err
	}
	allocation, err := s.repo.FindAllocation(ctx, tier.AllocationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "allocation not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load allocation")
	}

	var bundle *Terms
	row, err := s.repo.GetBundle(ctx, tierID)
	switch {
	case err == nil:
		bundle = BundleTerms(row)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load override bundle")
	}

	products, err := s.repo.ListAllocationProducts(ctx, allocation.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list allocation products")
	}
	overrideRows, err := s.repo.ListProductOverrides(ctx, tierID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list product overrides")
	}
	byProduct := make(map[string]*models.TierProductOverride, len(overrideRows))
	for i := range overrideRows {
		byProduct[overrideRows[i].ProductID] = &overrideRows[i]
	}

	effective := ResolveTerms(AllocationTerms(allocation), bundle)
	out := &TierTermsDTO{
		TierID:       tierID,
		AllocationID: allocation.ID,
		Terms:        effective,
		Display:      displayTerms(effective),
		Products:     make([]ProductTerms, 0, len(products)),
	}
	for _, product := range products {
		out.Products = append(out.Products, EffectiveProduct(product, byProduct[product.ProductID]))
	}
	return out, nil
}

func (s *service) loadTier(ctx context.Context, tierID uuid.UUID) (*models.AllocationTier, error) {
	if tierID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tier id is required")
	}
	tier, err := s.repo.FindTier(ctx, tierID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tier not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tier")
	}
	return tier, nil
}

func (s *service) logFailure(ctx context.Context, tierID uuid.UUID, msg string, err error) error {
	ctx = s.logg.WithTierID(ctx, tierID.String())
	if typed := pkgerrors.As(err); typed != nil && typed.Step() != "" {
		ctx = s.logg.WithField(ctx, "step", typed.Step())
	}
	s.logg.Error(s.logg.WithField(ctx, "dump", pkgerrors.Dump(err)), msg, err)
	return err
}

// ValidateTerms checks enum values and the cart bounds of a bundle.
func ValidateTerms(t Terms) error {
	problems := map[string]string{}
	if t.Discount.Type != nil && !t.Discount.Type.IsValid() {
		problems["discount.type"] = "must be percentage or fixed"
	}
	if t.Shipping.Type != nil && !t.Shipping.Type.IsValid() {
		problems["shipping.type"] = "must be percentage or fixed"
	}
	if t.Shipping.Method != nil && !t.Shipping.Method.IsValid() {
		problems["shipping.method"] = "unknown shipping method"
	}
	if t.Requirements.CartMin != nil && t.Requirements.CartMax != nil && *t.Requirements.CartMin > *t.Requirements.CartMax {
		problems["requirements.cart_min"] = "must not exceed cart_max"
	}
	if len(problems) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid override bundle").WithDetails(problems)
	}
	return nil
}

// BundleModel builds the persisted bundle row of a tier.
func BundleModel(tierID uuid.UUID, t Terms) models.TierOverride {
	return models.TierOverride{
		TierID:               tierID,
		CartMin:              t.Requirements.CartMin,
		CartMax:              t.Requirements.CartMax,
		MinAmount:            t.Requirements.MinAmount,
		DiscountType:         t.Discount.Type,
		DiscountAmount:       t.Discount.Amount,
		ShippingMethod:       t.Shipping.Method,
		ShippingDiscountType: t.Shipping.Type,
		ShippingAmount:       t.Shipping.Amount,
	}
}

package overrides

import (
	"context"

	"github.com/angelmondragon/allocations-backend/internal/repo"
	"github.com/angelmondragon/allocations-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var productOverrideColumns = []string{
	"override_price", "min_purchase", "max_purchase",
	"allow_wish_requests", "wish_request_min", "wish_request_max", "updated_at",
}

var bundleColumns = []string{
	"cart_min", "cart_max", "min_amount",
	"discount_type", "discount_amount",
	"shipping_method", "shipping_discount_type", "shipping_amount", "updated_at",
}

// Repository persists tier override bundles and product override rows.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) Store {
	return &Repository{Base: r.Tx(tx)}
}

// FindTier loads the tier an override belongs to.
func (r *Repository) FindTier(ctx context.Context, tierID uuid.UUID) (*models.AllocationTier, error) {
	var tier models.AllocationTier
	if err := r.DB(ctx).Where("id = ?", tierID).First(&tier).Error; err != nil {
		return nil, err
	}
	return &tier, nil
}

// FindAllocation loads the allocation owning a tier.
func (r *Repository) FindAllocation(ctx context.Context, allocationID uuid.UUID) (*models.Allocation, error) {
	var allocation models.Allocation
	if err := r.DB(ctx).Where("id = ?", allocationID).First(&allocation).Error; err != nil {
		return nil, err
	}
	return &allocation, nil
}

// ListAllocationProducts returns product defaults ordered by product id.
func (r *Repository) ListAllocationProducts(ctx context.Context, allocationID uuid.UUID) ([]models.AllocationProduct, error) {
	var products []models.AllocationProduct
	if err := r.DB(ctx).
		Where("allocation_id = ?", allocationID).
		Order("product_id ASC").
		Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// GetBundle returns the override bundle of a tier, or gorm.ErrRecordNotFound.
func (r *Repository) GetBundle(ctx context.Context, tierID uuid.UUID) (*models.TierOverride, error) {
	var bundle models.TierOverride
	if err := r.DB(ctx).Where("tier_id = ?", tierID).First(&bundle).Error; err != nil {
		return nil, err
	}
	return &bundle, nil
}

// UpsertBundle inserts the bundle or replaces every override column of the existing one.
func (r *Repository) UpsertBundle(ctx context.Context, bundle *models.TierOverride) error {
	return r.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tier_id"}},
		DoUpdates: clause.AssignmentColumns(bundleColumns),
	}).Create(bundle).Error
}

// ListProductOverrides returns the override rows of a tier ordered by product id.
func (r *Repository) ListProductOverrides(ctx context.Context, tierID uuid.UUID) ([]models.TierProductOverride, error) {
	var rows []models.TierProductOverride
	if err := r.DB(ctx).
		Where("tier_id = ?", tierID).
		Order("product_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// UpsertProductOverride writes a single (tier, product) row.
func (r *Repository) UpsertProductOverride(ctx context.Context, row *models.TierProductOverride) error {
	return r.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tier_id"}, {Name: "product_id"}},
		DoUpdates: clause.AssignmentColumns(productOverrideColumns),
	}).Create(row).Error
}

// DeleteProductOverrides removes every override row of a tier.
func (r *Repository) DeleteProductOverrides(ctx context.Context, tierID uuid.UUID) error {
	return r.DB(ctx).Where("tier_id = ?", tierID).Delete(&models.TierProductOverride{}).Error
}

// InsertProductOverrides inserts rows; an empty slice is a no-op.
func (r *Repository) InsertProductOverrides(ctx context.Context, rows []models.TierProductOverride) error {
	if len(rows) == 0 {
		return nil
	}
	return r.DB(ctx).Create(&rows).Error
}

// DeleteBundle removes the override bundle of a tier.
func (r *Repository) DeleteBundle(ctx context.Context, tierID uuid.UUID) error {
	return r.DB(ctx).Where("tier_id = ?", tierID).Delete(&models.TierOverride{}).Error
}

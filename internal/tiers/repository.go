package tiers

import (
	"context"

	"github.com/angelmondragon/allocations-backend/internal/repo"
	"github.com/angelmondragon/allocations-backend/pkg/db/models"
	"github.com/angelmondragon/allocations-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const assignmentBatchSize = 500

// Repository persists tiers and their membership rows.
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

func (r *Repository) FindAllocation(ctx context.Context, allocationID uuid.UUID) (*models.Allocation, error) {
	var allocation models.Allocation
	if err := r.DB(ctx).Where("id = ?", allocationID).First(&allocation).Error; err != nil {
		return nil, err
	}
	return &allocation, nil
}

func (r *Repository) FindByID(ctx context.Context, tierID uuid.UUID) (*models.AllocationTier, error) {
	var tier models.AllocationTier
	if err := r.DB(ctx).Where("id = ?", tierID).First(&tier).Error; err != nil {
		return nil, err
	}
	return &tier, nil
}

// ListByAllocation returns the tiers of an allocation ordered by level.
// Equal levels fall back to created_at then id so repeated calls agree.
func (r *Repository) ListByAllocation(ctx context.Context, allocationID uuid.UUID) ([]models.AllocationTier, error) {
	var tiers []models.AllocationTier
	if err := r.DB(ctx).
		Where("allocation_id = ?", allocationID).
		Order("level ASC").
		Order("created_at ASC").
		Order("id ASC").
		Find(&tiers).Error; err != nil {
		return nil, err
	}
	return tiers, nil
}

func (r *Repository) Create(ctx context.Context, tier *models.AllocationTier) error {
	return r.DB(ctx).Create(tier).Error
}

func (r *Repository) Delete(ctx context.Context, tierID uuid.UUID) error {
	res := r.DB(ctx).Where("id = ?", tierID).Delete(&models.AllocationTier{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// InsertAssignments writes membership rows in batches; an empty slice is a no-op.
func (r *Repository) InsertAssignments(ctx context.Context, rows []models.CustomerTier) error {
	if len(rows) == 0 {
		return nil
	}
	return r.DB(ctx).CreateInBatches(&rows, assignmentBatchSize).Error
}

// ListAssignments returns the membership rows of a tier.
func (r *Repository) ListAssignments(ctx context.Context, tierID uuid.UUID) ([]models.CustomerTier, error) {
	var rows []models.CustomerTier
	if err := r.DB(ctx).
		Where("tier_id = ?", tierID).
		Order("source_type ASC").
		Order("source_id ASC").
		Order("customer_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// DeleteAssignments removes every membership row of a tier.
func (r *Repository) DeleteAssignments(ctx context.Context, tierID uuid.UUID) error {
	return r.DB(ctx).Where("tier_id = ?", tierID).Delete(&models.CustomerTier{}).Error
}

// DeleteSourceAssignments removes the rows contributed by one source item.
func (r *Repository) DeleteSourceAssignments(ctx context.Context, tierID uuid.UUID, kind enums.SourceKind, sourceID string) (int64, error) {
	res := r.DB(ctx).
		Where("tier_id = ? AND source_type = ? AND source_id = ?", tierID, kind, sourceID).
		Delete(&models.CustomerTier{})
	return res.RowsAffected, res.Error
}

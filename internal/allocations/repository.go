package allocations

import (
	"context"

	"github.com/angelmondragon/allocations-backend/internal/repo"
	"github.com/angelmondragon/allocations-backend/pkg/db/models"
	"github.com/angelmondragon/allocations-backend/pkg/enums"
	"github.com/angelmondragon/allocations-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type listQuery struct {
	Status *enums.AllocationStatus
	Limit  int
	Cursor *pagination.Cursor
}

// Repository persists allocations and their product catalogue.
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

func (r *Repository) Create(ctx context.Context, allocation *models.Allocation) error {
	return r.DB(ctx).Create(allocation).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Allocation, error) {
	var allocation models.Allocation
	if err := r.DB(ctx).Where("id = ?", id).First(&allocation).Error; err != nil {
		return nil, err
	}
	return &allocation, nil
}

// List returns allocations newest first. Limit should already include the look-ahead row.
func (r *Repository) List(ctx context.Context, q listQuery) ([]models.Allocation, error) {
	query := r.DB(ctx).Model(&models.Allocation{})
	if q.Status != nil {
		query = query.Where("status = ?", *q.Status)
	}
	if q.Cursor != nil {
		query = query.Where("created_at < ? OR (created_at = ? AND id < ?)", q.Cursor.At, q.Cursor.At, q.Cursor.ID)
	}

	var rows []models.Allocation
	if err := query.Order("created_at DESC, id DESC").Limit(q.Limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Save writes every column of an existing allocation.
func (r *Repository) Save(ctx context.Context, allocation *models.Allocation) error {
	return r.DB(ctx).Save(allocation).Error
}

func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.AllocationStatus) (bool, error) {
	res := r.DB(ctx).Model(&models.Allocation{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	return res.RowsAffected > 0, res.Error
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.DB(ctx).Where("id = ?", id).Delete(&models.Allocation{}).Error
}

func (r *Repository) CountTiers(ctx context.Context, allocationID uuid.UUID) (int64, error) {
	var n int64
	err := r.DB(ctx).Model(&models.AllocationTier{}).Where("allocation_id = ?", allocationID).Count(&n).Error
	return n, err
}

func (r *Repository) CreateProduct(ctx context.Context, product *models.AllocationProduct) error {
	return r.DB(ctx).Create(product).Error
}

func (r *Repository) ListProducts(ctx context.Context, allocationID uuid.UUID) ([]models.AllocationProduct, error) {
	var rows []models.AllocationProduct
	if err := r.DB(ctx).
		Where("allocation_id = ?", allocationID).
		Order("product_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) DeleteProducts(ctx context.Context, allocationID uuid.UUID) error {
	return r.DB(ctx).Where("allocation_id = ?", allocationID).Delete(&models.AllocationProduct{}).Error
}

package allocations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/allocations-backend/internal/overrides"
	"github.com/angelmondragon/allocations-backend/pkg/db"
	"github.com/angelmondragon/allocations-backend/pkg/db/models"
	"github.com/angelmondragon/allocations-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/allocations-backend/pkg/errors"
	"github.com/angelmondragon/allocations-backend/pkg/logger"
	"github.com/angelmondragon/allocations-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	stepInsertAllocation = "insert_allocation"
	stepUpdateAllocation = "update_allocation"
	stepDeleteProducts   = "delete_products"
	stepDeleteAllocation = "delete_allocation"
	stepInsertProduct    = "insert_product"

	productConstraint = "ux_allocation_products_product"
	productColumnRef  = "allocation_products.product_id"
)

// Store is the allocation persistence; WithTx binds it to a transaction.
type Store interface {
	WithTx(tx *gorm.DB) Store
	Create(ctx context.Context, allocation *models.Allocation) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Allocation, error)
	List(ctx context.Context, q listQuery) ([]models.Allocation, error)
	Save(ctx context.Context, allocation *models.Allocation) error
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.AllocationStatus) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
	CountTiers(ctx context.Context, allocationID uuid.UUID) (int64, error)
	CreateProduct(ctx context.Context, product *models.AllocationProduct) error
	ListProducts(ctx context.Context, allocationID uuid.UUID) ([]models.AllocationProduct, error)
	DeleteProducts(ctx context.Context, allocationID uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// TierLister returns the tiers of an allocation in display order.
type TierLister interface {
	ListByAllocation(ctx context.Context, allocationID uuid.UUID) ([]models.AllocationTier, error)
}

type CreateInput struct {
	Name        string
	Description *string
	Type        enums.AllocationType
	StartsAt    time.Time
	EndsAt      time.Time
	Terms       overrides.Terms
}

// UpdateInput changes only the fields that are set. Terms replaces every default at once.
type UpdateInput struct {
	Name        *string
	Description *string
	Type        *enums.AllocationType
	StartsAt    *time.Time
	EndsAt      *time.Time
	Terms       *overrides.Terms
}

type ListParams struct {
	Status *enums.AllocationStatus
	pagination.Params
}

type ProductInput struct {
	ProductID         string
	Name              string
	Price             decimal.Decimal
	MinPurchase       *int
	MaxPurchase       *int
	AllowWishRequests bool
	WishRequestMin    *int
	WishRequestMax    *int
}

type Service interface {
	Create(ctx context.Context, input CreateInput) (*AllocationDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*AllocationDTO, error)
	List(ctx context.Context, params ListParams) (*pagination.Page[AllocationDTO], error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*AllocationDTO, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, to enums.AllocationStatus) (*AllocationDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
	AddProduct(ctx context.Context, id uuid.UUID, input ProductInput) (*ProductDTO, error)
	ListProducts(ctx context.Context, id uuid.UUID) ([]ProductDTO, error)
	Overview(ctx context.Context, id uuid.UUID) (*Overview, error)
}

type ServiceParams struct {
	Repo   Store
	Tiers  TierLister
	Tx     txRunner
	Logger *logger.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
}

type service struct {
	repo  Store
	tiers TierLister
	tx    txRunner
	logg  *logger.Logger
	clock func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("allocations repository required")
	}
	if params.Tiers == nil {
		return nil, fmt.Errorf("tier lister required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{repo: params.Repo, tiers: params.Tiers, tx: params.Tx, logg: params.Logger, clock: clock}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*AllocationDTO, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := validateAllocation(input.Name, input.Type, input.StartsAt, input.EndsAt, input.Terms); err != nil {
		return nil, err
	}

	allocation := models.Allocation{
		Name:        input.Name,
		Description: input.Description,
		Type:        input.Type,
		Status:      enums.AllocationStatusDraft,
		StartsAt:    input.StartsAt,
		EndsAt:      input.EndsAt,
	}
	applyTerms(&allocation, input.Terms)
	if err := s.repo.Create(ctx, &allocation); err != nil {
		return nil, s.logFailure(ctx, "create allocation failed", pkgerrors.Persistence(err, stepInsertAllocation))
	}

	ctx = s.logg.WithAllocationID(ctx, allocation.ID.String())
	s.logg.Info(ctx, "allocation created")
	dto := allocationDTO(allocation)
	return &dto, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*AllocationDTO, error) {
	allocation, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := allocationDTO(*allocation)
	return &dto, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*pagination.Page[AllocationDTO], error) {
	if params.Status != nil && !params.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	query := listQuery{Status: params.Status, Limit: pagination.LimitWithBuffer(params.Limit)}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list allocations")
	}
	page := pagination.Trim(rows, params.Limit, func(m models.Allocation) pagination.Cursor {
		return pagination.Cursor{At: m.CreatedAt, ID: m.ID}
	})
	items := make([]AllocationDTO, 0, len(page.Items))
	for _, row := range page.Items {
		items = append(items, allocationDTO(row))
	}
	return &pagination.Page[AllocationDTO]{Items: items, NextCursor: page.NextCursor}, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*AllocationDTO, error) {
	allocation, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		allocation.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		allocation.Description = input.Description
	}
	if input.StartsAt != nil {
		allocation.StartsAt = *input.StartsAt
	}
	if input.EndsAt != nil {
		allocation.EndsAt = *input.EndsAt
	}
	if input.Terms != nil {
		applyTerms(allocation, *input.Terms)
	}
	if input.Type != nil && *input.Type != allocation.Type {
		if *input.Type != enums.AllocationTypeTier {
			count, err := s.repo.CountTiers(ctx, id)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count tiers")
			}
			if count > 0 {
				return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "allocation type cannot change while tiers exist").
					WithDetails(map[string]any{"tiers": count})
			}
		}
		allocation.Type = *input.Type
	}

	terms := overrides.AllocationTerms(allocation)
	if err := validateAllocation(allocation.Name, allocation.Type, allocation.StartsAt, allocation.EndsAt, terms); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, allocation); err != nil {
		return nil, s.logFailure(s.logg.WithAllocationID(ctx, id.String()), "update allocation failed", pkgerrors.Persistence(err, stepUpdateAllocation))
	}
	dto := allocationDTO(*allocation)
	return &dto, nil
}

// TransitionStatus moves the allocation along draft, scheduled, active, completed.
// Scheduled allocations may return to draft.
func (s *service) TransitionStatus(ctx context.Context, id uuid.UUID, to enums.AllocationStatus) (*AllocationDTO, error) {
	if !to.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid status %q", to))
	}
	allocation, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	from := allocation.Status
	if !from.CanTransitionTo(to) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "status transition not allowed").
			WithDetails(map[string]any{"from": from, "to": to})
	}

	updated, err := s.repo.UpdateStatus(ctx, id, from, to)
	if err != nil {
		return nil, s.logFailure(s.logg.WithAllocationID(ctx, id.String()), "update allocation status failed", pkgerrors.Persistence(err, stepUpdateAllocation))
	}
	if !updated {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "allocation status changed concurrently").
			WithDetails(map[string]any{"from": from, "to": to})
	}

	ctx = s.logg.WithFields(s.logg.WithAllocationID(ctx, id.String()), map[string]any{"from": from, "to": to})
	s.logg.Info(ctx, "allocation status changed")
	allocation.Status = to
	dto := allocationDTO(*allocation)
	return &dto, nil
}

// Delete removes an allocation and its products. Allocations with tiers are kept.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	count, err := s.repo.CountTiers(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count tiers")
	}
	if count > 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "allocation still has tiers").
			WithDetails(map[string]any{"tiers": count})
	}

	ctx = s.logg.WithAllocationID(ctx, id.String())
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.DeleteProducts(ctx, id); err != nil {
			return pkgerrors.Persistence(err, stepDeleteProducts)
		}
		if err := repo.Delete(ctx, id); err != nil {
			return pkgerrors.Persistence(err, stepDeleteAllocation)
		}
		return nil
	})
	if err != nil {
		return s.logFailure(ctx, "delete allocation failed", err)
	}
	s.logg.Info(ctx, "allocation deleted")
	return nil
}

func (s *service) AddProduct(ctx context.Context, id uuid.UUID, input ProductInput) (*ProductDTO, error) {
	if err := validateProduct(input); err != nil {
		return nil, err
	}
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}

	product := models.AllocationProduct{
		AllocationID:      id,
		ProductID:         input.ProductID,
		Name:              input.Name,
		Price:             input.Price,
		MinPurchase:       input.MinPurchase,
		MaxPurchase:       input.MaxPurchase,
		AllowWishRequests: input.AllowWishRequests,
		WishRequestMin:    input.WishRequestMin,
		WishRequestMax:    input.WishRequestMax,
	}
	if err := s.repo.CreateProduct(ctx, &product); err != nil {
		if db.IsUniqueViolation(err, productConstraint) || db.IsUniqueViolation(err, productColumnRef) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "product already part of allocation").
				WithDetails(map[string]any{"product_id": input.ProductID})
		}
		return nil, s.logFailure(s.logg.WithAllocationID(ctx, id.String()), "add allocation product failed", pkgerrors.Persistence(err, stepInsertProduct))
	}
	dto := productDTO(product)
	return &dto, nil
}

func (s *service) ListProducts(ctx context.Context, id uuid.UUID) ([]ProductDTO, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListProducts(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list allocation products")
	}
	out := make([]ProductDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, productDTO(row))
	}
	return out, nil
}

// Overview assembles the detail view. Individual allocations carry no tiers.
func (s *service) Overview(ctx context.Context, id uuid.UUID) (*Overview, error) {
	allocation, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	var tiers []models.AllocationTier
	if allocation.Type == enums.AllocationTypeTier {
		tiers, err = s.tiers.ListByAllocation(ctx, id)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tiers")
		}
	}

	dto := allocationDTO(*allocation)
	return &Overview{
		Allocation: dto,
		Display: overrides.TermsDisplay{
			MinAmount:      overrides.FormatAmount(dto.Terms.Requirements.MinAmount),
			DiscountAmount: overrides.FormatAmount(dto.Terms.Discount.Amount),
			ShippingAmount: overrides.FormatAmount(dto.Terms.Shipping.Amount),
		},
		Tiers:    overviewTiers(tiers),
		Summary:  SummarizeType(*allocation, tiers),
		Progress: ComputeProgress(allocation.StartsAt, allocation.EndsAt, s.clock()),
	}, nil
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Allocation, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "allocation id is required")
	}
	allocation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "allocation not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load allocation")
	}
	return allocation, nil
}

func (s *service) logFailure(ctx context.Context, msg string, err error) error {
	if typed := pkgerrors.As(err); typed != nil && typed.Step() != "" {
		ctx = s.logg.WithField(ctx, "step", typed.Step())
	}
	s.logg.Error(s.logg.WithField(ctx, "dump", pkgerrors.Dump(err)), msg, err)
	return err
}

func validateAllocation(name string, kind enums.AllocationType, startsAt, endsAt time.Time, terms overrides.Terms) error {
	problems := map[string]string{}
	if name == "" {
		problems["name"] = "is required"
	}
	if !kind.IsValid() {
		problems["type"] = "must be tier or individual"
	}
	if startsAt.IsZero() {
		problems["starts_at"] = "is required"
	}
	if endsAt.IsZero() {
		problems["ends_at"] = "is required"
	}
	if !startsAt.IsZero() && !endsAt.IsZero() && !endsAt.After(startsAt) {
		problems["ends_at"] = "must be after starts_at"
	}
	if len(problems) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid allocation").WithDetails(problems)
	}
	return overrides.ValidateTerms(terms)
}

func validateProduct(input ProductInput) error {
	if strings.TrimSpace(input.ProductID) == "" || strings.TrimSpace(input.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id and name are required")
	}
	if input.Price.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	}
	fields := overrides.Fields{
		MinPurchase:    input.MinPurchase,
		MaxPurchase:    input.MaxPurchase,
		WishRequestMin: input.WishRequestMin,
		WishRequestMax: input.WishRequestMax,
	}
	return fields.Validate()
}

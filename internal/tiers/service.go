package tiers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/allocations-backend/internal/aggregates"
	"github.com/angelmondragon/allocations-backend/internal/audience"
	"github.com/angelmondragon/allocations-backend/internal/overrides"
	"github.com/angelmondragon/allocations-backend/pkg/db"
	"github.com/angelmondragon/allocations-backend/pkg/db/models"
	"github.com/angelmondragon/allocations-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/allocations-backend/pkg/errors"
	"github.com/angelmondragon/allocations-backend/pkg/logger"
	"github.com/angelmondragon/allocations-backend/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

// Steps reported in the details of a failed tier mutation.
const (
	StepResolveMembers         = audience.StepResolveMembers
	StepInsertTier             = "insert_tier"
	StepInsertOverrideBundle   = "insert_override_bundle"
	StepInsertProductOverrides = "insert_product_overrides"
	StepInsertAssignments      = "insert_assignments"
	StepRefreshAggregates      = "refresh_aggregates"
	StepDeleteOverrideBundle   = "delete_override_bundle"
	StepDeleteProductOverrides = "delete_product_overrides"
	StepDeleteAssignments      = "delete_assignments"
	StepDeleteTier             = "delete_tier"
)

// sqlite names columns instead of the index in unique violations.
const levelColumnRef = "allocation_tiers.level"

// ErrDuplicateLevel is wrapped into the conflict returned when a level is already taken.
var ErrDuplicateLevel = errors.New("tier level already used in allocation")

// Store is the persistence the tier service needs; WithTx binds it to a transaction.
type Store interface {
	WithTx(tx *gorm.DB) Store
	FindAllocation(ctx context.Context, allocationID uuid.UUID) (*models.Allocation, error)
	FindByID(ctx context.Context, tierID uuid.UUID) (*models.AllocationTier, error)
	ListByAllocation(ctx context.Context, allocationID uuid.UUID) ([]models.AllocationTier, error)
	Create(ctx context.Context, tier *models.AllocationTier) error
	Delete(ctx context.Context, tierID uuid.UUID) error
	InsertAssignments(ctx context.Context, rows []models.CustomerTier) error
	ListAssignments(ctx context.Context, tierID uuid.UUID) ([]models.CustomerTier, error)
	DeleteAssignments(ctx context.Context, tierID uuid.UUID) error
	DeleteSourceAssignments(ctx context.Context, tierID uuid.UUID, kind enums.SourceKind, sourceID string) (int64, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CreateTierInput carries a new tier together with its overrides and audience.
// Pointer fields are required; nil reports them as missing.
type CreateTierInput struct {
	AllocationID     uuid.UUID
	Name             string
	Level            *int
	AccessStart      *time.Time
	AccessEnd        *time.Time
	Bundle           *overrides.Terms
	ProductOverrides map[string]overrides.Fields
	ActiveKind       enums.SourceKind
	Sources          audience.Sources
}

type Service interface {
	CreateTier(ctx context.Context, input CreateTierInput) (*CreateTierResult, error)
	ListTiers(ctx context.Context, allocationID uuid.UUID) ([]TierDTO, error)
	GetTier(ctx context.Context, tierID uuid.UUID) (*TierDTO, error)
	Membership(ctx context.Context, tierID uuid.UUID) (*MembershipDTO, error)
	AddSources(ctx context.Context, tierID uuid.UUID, sources audience.Sources) (*MembershipDTO, error)
	RemoveSource(ctx context.Context, tierID uuid.UUID, kind enums.SourceKind, sourceID string) (*MembershipDTO, error)
	DeleteTier(ctx context.Context, tierID uuid.UUID) error
}

type ServiceParams struct {
	Repo      Store
	Overrides overrides.Store
	Resolver  audience.MemberResolver
	Tx        txRunner
	Logger    *logger.Logger
	Metrics   *metrics.OperationMetrics
}

type service struct {
	repo      Store
	overrides overrides.Store
	resolver  audience.MemberResolver
	tx        txRunner
	logg      *logger.Logger
	metrics   *metrics.OperationMetrics
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("tiers repository required")
	}
	if params.Overrides == nil {
		return nil, fmt.Errorf("overrides repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:      params.Repo,
		overrides: params.Overrides,
		resolver:  params.Resolver,
		tx:        params.Tx,
		logg:      params.Logger,
		metrics:   params.Metrics,
	}, nil
}

// CreateTier validates the input, expands the audience and then writes the
// tier, its overrides and its membership in a single transaction.
func (s *service) CreateTier(ctx context.Context, input CreateTierInput) (*CreateTierResult, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := validateCreate(input); err != nil {
		return nil, err
	}
	ctx = s.logg.WithAllocationID(ctx, input.AllocationID.String())

	allocation, err := s.repo.FindAllocation(ctx, input.AllocationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "allocation not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load allocation")
	}
	if allocation.Type != enums.AllocationTypeTier {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "allocation does not use tiers").
			WithDetails(map[string]any{"allocation_type": allocation.Type})
	}

	started := time.Now()
	result, err := s.createTier(ctx, input)
	s.metrics.Observe(metrics.OpTierCreate, started, err)
	if err != nil {
		return nil, s.logFailure(ctx, "create tier failed", err)
	}

	ctx = s.logg.WithFields(s.logg.WithTierID(ctx, result.Tier.ID.String()), map[string]any{
		"level":     result.Tier.Level,
		"customers": result.Tier.CustomerCount,
	})
	s.logg.Info(ctx, "tier created")
	return result, nil
}

func (s *service) createTier(ctx context.Context, input CreateTierInput) (*CreateTierResult, error) {
	sel, err := audience.SelectionFrom(input.ActiveKind, input.Sources)
	if err != nil {
		return nil, err
	}
	assignments, err := audience.Flatten(ctx, sel, s.resolver)
	if err != nil {
		return nil, err
	}

	tier := models.AllocationTier{
		AllocationID: input.AllocationID,
		Name:         input.Name,
		Level:        *input.Level,
		AccessStart:  *input.AccessStart,
		AccessEnd:    *input.AccessEnd,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		overridesRepo := s.overrides.WithTx(tx)

		if err := repo.Create(ctx, &tier); err != nil {
			if isDuplicateLevel(err) {
				return duplicateLevel(input.AllocationID, tier.Level)
			}
			return pkgerrors.Persistence(err, StepInsertTier)
		}
		if input.Bundle != nil {
			bundle := overrides.BundleModel(tier.ID, *input.Bundle)
			if err := overridesRepo.UpsertBundle(ctx, &bundle); err != nil {
				return pkgerrors.Persistence(err, StepInsertOverrideBundle)
			}
		}
		if err := overridesRepo.InsertProductOverrides(ctx, overrides.Rows(tier.ID, input.ProductOverrides)); err != nil {
			return pkgerrors.Persistence(err, StepInsertProductOverrides)
		}
		if err := repo.InsertAssignments(ctx, assignmentModels(input.AllocationID, tier.ID, assignments)); err != nil {
			return pkgerrors.Persistence(err, StepInsertAssignments)
		}
		reason := aggregates.ReasonTierCreated
		if len(input.ProductOverrides) > 0 {
			reason = aggregates.ReasonProductOverridesSaved
		}
		snapshot, err := aggregates.Refresh(ctx, tx, tier.ID, reason)
		if err != nil {
			return pkgerrors.Persistence(err, StepRefreshAggregates)
		}
		tier.CustomerCount = snapshot.CustomerCount
		tier.HasProductOverrides = snapshot.HasProductOverrides
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &CreateTierResult{
		Tier:               tierDTO(tier),
		EstimatedCustomers: sel.TotalEstimatedCustomers(),
		UnknownCardinality: sel.UnknownCardinality(),
		ExactCustomers:     audience.ExactCustomers(assignments),
	}, nil
}

func (s *service) ListTiers(ctx context.Context, allocationID uuid.UUID) ([]TierDTO, error) {
	rows, err := s.repo.ListByAllocation(ctx, allocationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tiers")
	}
	out := make([]TierDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, tierDTO(row))
	}
	return out, nil
}

func (s *service) GetTier(ctx context.Context, tierID uuid.UUID) (*TierDTO, error) {
	tier, err := s.loadTier(ctx, tierID)
	if err != nil {
		return nil, err
	}
	dto := tierDTO(*tier)
	return &dto, nil
}

// Membership loads the membership rows of a tier on demand.
func (s *service) Membership(ctx context.Context, tierID uuid.UUID) (*MembershipDTO, error) {
	tier, err := s.loadTier(ctx, tierID)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListAssignments(ctx, tierID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tier membership")
	}
	return membership(tier, rows), nil
}

// AddSources expands more source items into the tier. Triples already present are skipped.
func (s *service) AddSources(ctx context.Context, tierID uuid.UUID, sources audience.Sources) (*MembershipDTO, error) {
	tier, err := s.loadTier(ctx, tierID)
	if err != nil {
		return nil, err
	}
	sel, err := audience.SelectionFrom("", sources)
	if err != nil {
		return nil, err
	}
	assignments, err := audience.Flatten(ctx, sel, s.resolver)
	if err != nil {
		return nil, s.logFailure(s.logg.WithTierID(ctx, tierID.String()), "resolve tier sources failed", err)
	}

	var rows []models.CustomerTier
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.ListAssignments(ctx, tierID)
		if err != nil {
			return pkgerrors.Persistence(err, StepInsertAssignments)
		}
		present := make(map[audience.Assignment]struct{}, len(existing))
		for _, a := range assignmentsFromModels(existing) {
			present[a] = struct{}{}
		}
		fresh := make([]audience.Assignment, 0, len(assignments))
		for _, a := range assignments {
			if _, ok := present[a]; !ok {
				fresh = append(fresh, a)
			}
		}
		if err := repo.InsertAssignments(ctx, assignmentModels(tier.AllocationID, tierID, fresh)); err != nil {
			return pkgerrors.Persistence(err, StepInsertAssignments)
		}
		return s.refreshMembership(ctx, tx, tier, &rows)
	})
	if err != nil {
		return nil, s.logFailure(s.logg.WithTierID(ctx, tierID.String()), "add tier sources failed", err)
	}
	return membership(tier, rows), nil
}

// RemoveSource drops the rows contributed by one source item.
func (s *service) RemoveSource(ctx context.Context, tierID uuid.UUID, kind enums.SourceKind, sourceID string) (*MembershipDTO, error) {
	if !kind.IsValid() || sourceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "source type and source id are required")
	}
	tier, err := s.loadTier(ctx, tierID)
	if err != nil {
		return nil, err
	}

	var rows []models.CustomerTier
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.repo.WithTx(tx).DeleteSourceAssignments(ctx, tierID, kind, sourceID); err != nil {
			return pkgerrors.Persistence(err, StepDeleteAssignments)
		}
		return s.refreshMembership(ctx, tx, tier, &rows)
	})
	if err != nil {
		return nil, s.logFailure(s.logg.WithTierID(ctx, tierID.String()), "remove tier source failed", err)
	}
	return membership(tier, rows), nil
}

func (s *service) refreshMembership(ctx context.Context, tx *gorm.DB, tier *models.AllocationTier, rows *[]models.CustomerTier) error {
	snapshot, err := aggregates.Refresh(ctx, tx, tier.ID, aggregates.ReasonMembershipChanged)
	if err != nil {
		return pkgerrors.Persistence(err, StepRefreshAggregates)
	}
	tier.CustomerCount = snapshot.CustomerCount
	tier.HasProductOverrides = snapshot.HasProductOverrides
	list, err := s.repo.WithTx(tx).ListAssignments(ctx, tier.ID)
	if err != nil {
		return pkgerrors.Persistence(err, StepRefreshAggregates)
	}
	*rows = list
	return nil
}

// DeleteTier removes the tier with its overrides and membership. Any failing
// step rolls the whole deletion back.
func (s *service) DeleteTier(ctx context.Context, tierID uuid.UUID) error {
	tier, err := s.loadTier(ctx, tierID)
	if err != nil {
		return err
	}
	ctx = s.logg.WithTierID(s.logg.WithAllocationID(ctx, tier.AllocationID.String()), tierID.String())

	started := time.Now()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		overridesRepo := s.overrides.WithTx(tx)
		if err := overridesRepo.DeleteBundle(ctx, tierID); err != nil {
			return pkgerrors.Persistence(err, StepDeleteOverrideBundle)
		}
		if err := overridesRepo.DeleteProductOverrides(ctx, tierID); err != nil {
			return pkgerrors.Persistence(err, StepDeleteProductOverrides)
		}
		if err := repo.DeleteAssignments(ctx, tierID); err != nil {
			return pkgerrors.Persistence(err, StepDeleteAssignments)
		}
		if err := repo.Delete(ctx, tierID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "tier not found")
			}
			return pkgerrors.Persistence(err, StepDeleteTier)
		}
		return nil
	})
	s.metrics.Observe(metrics.OpTierDelete, started, err)
	if err != nil {
		return s.logFailure(ctx, "delete tier failed", err)
	}
	s.logg.Info(ctx, "tier deleted")
	return nil
}

func (s *service) loadTier(ctx context.Context, tierID uuid.UUID) (*models.AllocationTier, error) {
	if tierID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tier id is required")
	}
	tier, err := s.repo.FindByID(ctx, tierID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tier not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tier")
	}
	return tier, nil
}

func (s *service) logFailure(ctx context.Context, msg string, err error) error {
	if typed := pkgerrors.As(err); typed != nil && typed.Step() != "" {
		ctx = s.logg.WithField(ctx, "step", typed.Step())
	}
	if pkgerrors.IsCode(err, pkgerrors.CodeConflict) || pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), msg)
		return err
	}
	s.logg.Error(s.logg.WithField(ctx, "dump", pkgerrors.Dump(err)), msg, err)
	return err
}

func membership(tier *models.AllocationTier, rows []models.CustomerTier) *MembershipDTO {
	assignments := assignmentsFromModels(rows)
	return &MembershipDTO{
		TierID:         tier.ID,
		CustomerCount:  tier.CustomerCount,
		ExactCustomers: audience.ExactCustomers(assignments),
		Assignments:    assignments,
	}
}

func validateCreate(input CreateTierInput) error {
	var missing error
	var fields []string
	need := func(ok bool, field string) {
		if !ok {
			fields = append(fields, field)
			missing = multierr.Append(missing, fmt.Errorf("%s is required", field))
		}
	}
	need(input.AllocationID != uuid.Nil, "allocation_id")
	need(input.Name != "", "name")
	need(input.Level != nil, "level")
	need(input.AccessStart != nil, "access_start")
	need(input.AccessEnd != nil, "access_end")
	if missing != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, missing, "missing required fields").
			WithDetails(map[string]any{"fields": fields})
	}

	if *input.Level <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "level must be positive").
			WithDetails(map[string]any{"level": *input.Level})
	}
	if input.AccessEnd.Before(*input.AccessStart) {
		return pkgerrors.New(pkgerrors.CodeValidation, "access_end must not precede access_start")
	}
	if input.Bundle != nil {
		if err := overrides.ValidateTerms(*input.Bundle); err != nil {
			return err
		}
	}
	return overrides.ValidateSet(input.ProductOverrides)
}

func isDuplicateLevel(err error) bool {
	return db.IsUniqueViolation(err, models.TierLevelConstraint) || db.IsUniqueViolation(err, levelColumnRef)
}

func duplicateLevel(allocationID uuid.UUID, level int) error {
	return pkgerrors.Wrap(pkgerrors.CodeConflict, ErrDuplicateLevel, "a tier with this level already exists").
		WithDetails(map[string]any{"allocation_id": allocationID, "level": level})
}

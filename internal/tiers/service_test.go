package tiers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/allocations-backend/internal/audience"
	"github.com/angelmondragon/allocations-backend/internal/overrides"
	"github.com/angelmondragon/allocations-backend/internal/repo/repotest"
	"github.com/angelmondragon/allocations-backend/pkg/db"
	"github.com/angelmondragon/allocations-backend/pkg/db/models"
	"github.com/angelmondragon/allocations-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/allocations-backend/pkg/errors"
	"github.com/angelmondragon/allocations-backend/pkg/logger"
	"github.com/angelmondragon/allocations-backend/pkg/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var windowStart = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

var _ Store = (*Repository)(nil)

type stubResolver struct {
	members map[string][]string
	err     error
}

func (s stubResolver) Members(_ context.Context, kind enums.SourceKind, sourceID string) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.members[kind.String()+":"+sourceID], nil
}

type fixture struct {
	db         *gorm.DB
	svc        Service
	overrides  overrides.Service
	allocation models.Allocation
}

func newFixture(t *testing.T, resolver audience.MemberResolver) fixture {
	t.Helper()
	conn := repotest.Open(t)

	allocation := models.Allocation{
		Name:     "Spring release",
		Type:     enums.AllocationTypeTier,
		Status:   enums.AllocationStatusDraft,
		StartsAt: windowStart,
		EndsAt:   windowStart.AddDate(0, 1, 0),
	}
	require.NoError(t, conn.Create(&allocation).Error)
	require.NoError(t, conn.Create(&models.AllocationProduct{
		AllocationID: allocation.ID,
		ProductID:    "cab-2019",
		Name:         "Cabernet",
		Price:        decimal.RequireFromString("85.00"),
	}).Error)

	txRunner := db.NewFromGorm(conn)
	overridesRepo := overrides.NewRepository(conn)
	svc, err := NewService(ServiceParams{
		Repo:      NewRepository(conn),
		Overrides: overridesRepo,
		Resolver:  resolver,
		Tx:        txRunner,
		Logger:    logger.Nop(),
		Metrics:   metrics.NewOperationMetrics(nil),
	})
	require.NoError(t, err)
	overridesSvc, err := overrides.NewService(overrides.ServiceParams{
		Repo:   overridesRepo,
		Tx:     txRunner,
		Logger: logger.Nop(),
	})
	require.NoError(t, err)

	return fixture{db: conn, svc: svc, overrides: overridesSvc, allocation: allocation}
}

func (f fixture) input(level int) CreateTierInput {
	start := windowStart
	end := windowStart.AddDate(0, 0, 7)
	return CreateTierInput{
		AllocationID: f.allocation.ID,
		Name:         "Tier",
		Level:        &level,
		AccessStart:  &start,
		AccessEnd:    &end,
	}
}

func (f fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

func intPtr(v int) *int { return &v }

var defaultMembers = stubResolver{members: map[string][]string{
	"tag:vip":   {"c1", "c2"},
	"club:wine": {"c2"},
}}

func fullInput(f fixture) CreateTierInput {
	input := f.input(1)
	input.Name = "Founders"
	input.Bundle = &overrides.Terms{Requirements: overrides.Requirements{CartMax: intPtr(6)}}
	input.ProductOverrides = map[string]overrides.Fields{"cab-2019": {MaxPurchase: intPtr(2)}}
	input.Sources = audience.Sources{
		enums.SourceKindTag:    {{ID: "vip", Cardinality: intPtr(2)}},
		enums.SourceKindClub:   {{ID: "wine"}},
		enums.SourceKindSearch: {{ID: "c3"}},
	}
	return input
}

func TestCreateTierPersistsTierOverridesAndMembership(t *testing.T) {
	f := newFixture(t, defaultMembers)
	ctx := context.Background()

	result, err := f.svc.CreateTier(ctx, fullInput(f))
	require.NoError(t, err)

	assert.Equal(t, 3, result.Tier.CustomerCount)
	assert.True(t, result.Tier.HasProductOverrides)
	assert.Equal(t, 4, result.EstimatedCustomers)
	assert.Equal(t, 2, result.UnknownCardinality)
	assert.Equal(t, 3, result.ExactCustomers)

	members, err := f.svc.Membership(ctx, result.Tier.ID)
	require.NoError(t, err)
	assert.Len(t, members.Assignments, 4)
	assert.Equal(t, 3, members.ExactCustomers)
	assert.Equal(t, 3, members.CustomerCount)

	bundle, err := f.overrides.GetBundle(ctx, result.Tier.ID)
	require.NoError(t, err)
	assert.True(t, bundle.Exists)
	assert.Equal(t, 6, *bundle.Terms.Requirements.CartMax)

	listed, err := f.overrides.ListOverrides(ctx, result.Tier.ID)
	require.NoError(t, err)
	assert.Contains(t, listed, "cab-2019")
}

func TestCreateTierReportsMissingFields(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.CreateTier(context.Background(), CreateTierInput{AllocationID: f.allocation.ID})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Equal(t, "missing required fields", typed.Message())
	assert.Equal(t, map[string]any{"fields": []string{"name", "level", "access_start", "access_end"}}, typed.Details())
	assert.Zero(t, f.count(t, &models.AllocationTier{}))
}

func TestCreateTierRejectsBlankName(t *testing.T) {
	f := newFixture(t, nil)

	input := f.input(1)
	input.Name = "   "
	_, err := f.svc.CreateTier(context.Background(), input)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, map[string]any{"fields": []string{"name"}}, typed.Details())
	assert.Zero(t, f.count(t, &models.AllocationTier{}))
}

func TestCreateTierValidatesLevelAndWindow(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.CreateTier(context.Background(), f.input(0))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	input := f.input(1)
	before := windowStart.AddDate(0, 0, -1)
	input.AccessEnd = &before
	_, err = f.svc.CreateTier(context.Background(), input)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestCreateTierRejectsDuplicateLevel(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.CreateTier(ctx, f.input(2))
	require.NoError(t, err)
	_, err = f.svc.CreateTier(ctx, f.input(2))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateLevel))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	assert.EqualValues(t, 1, f.count(t, &models.AllocationTier{}))
}

func TestCreateTierRequiresTierAllocation(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.db.Model(&models.Allocation{}).
		Where("id = ?", f.allocation.ID).
		Update("allocation_type", enums.AllocationTypeIndividual).Error)

	_, err := f.svc.CreateTier(context.Background(), f.input(1))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	input := f.input(1)
	input.AllocationID = uuid.New()
	_, err = f.svc.CreateTier(context.Background(), input)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestListTiersOrderedByLevelAndStable(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	for _, level := range []int{3, 1, 2} {
		_, err := f.svc.CreateTier(ctx, f.input(level))
		require.NoError(t, err)
	}

	first, err := f.svc.ListTiers(ctx, f.allocation.ID)
	require.NoError(t, err)
	require.Len(t, first, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{first[0].Level, first[1].Level, first[2].Level})

	second, err := f.svc.ListTiers(ctx, f.allocation.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	empty, err := f.svc.ListTiers(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func failOn(t *testing.T, conn *gorm.DB, kind, table string) {
	t.Helper()
	fail := func(tx *gorm.DB) {
		if tx.Statement.Table == table {
			_ = tx.AddError(errors.New("injected failure"))
		}
	}
	var err error
	switch kind {
	case "create":
		err = conn.Callback().Create().Before("gorm:create").Register("test:fail_create", fail)
	case "update":
		err = conn.Callback().Update().Before("gorm:update").Register("test:fail_update", fail)
	case "delete":
		err = conn.Callback().Delete().Before("gorm:delete").Register("test:fail_delete", fail)
	}
	require.NoError(t, err)
}

func TestCreateTierFailureStepsRollBack(t *testing.T) {
	cases := []struct {
		name  string
		kind  string
		table string
		step  string
	}{
		{name: "tier", kind: "create", table: "allocation_tiers", step: StepInsertTier},
		{name: "bundle", kind: "create", table: "tier_overrides", step: StepInsertOverrideBundle},
		{name: "product overrides", kind: "create", table: "tier_product_overrides", step: StepInsertProductOverrides},
		{name: "assignments", kind: "create", table: "customer_tiers", step: StepInsertAssignments},
		{name: "refresh", kind: "update", table: "allocation_tiers", step: StepRefreshAggregates},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, defaultMembers)
			failOn(t, f.db, tc.kind, tc.table)

			_, err := f.svc.CreateTier(context.Background(), fullInput(f))
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePersistence))
			assert.Equal(t, tc.step, pkgerrors.As(err).Step())

			assert.Zero(t, f.count(t, &models.AllocationTier{}))
			assert.Zero(t, f.count(t, &models.TierOverride{}))
			assert.Zero(t, f.count(t, &models.TierProductOverride{}))
			assert.Zero(t, f.count(t, &models.CustomerTier{}))
		})
	}
}

func TestCreateTierResolverFailureWritesNothing(t *testing.T) {
	f := newFixture(t, stubResolver{err: errors.New("reporting down")})

	_, err := f.svc.CreateTier(context.Background(), fullInput(f))
	require.Error(t, err)
	assert.Equal(t, StepResolveMembers, pkgerrors.As(err).Step())
	assert.Zero(t, f.count(t, &models.AllocationTier{}))
}

func TestDeleteTierCascades(t *testing.T) {
	f := newFixture(t, defaultMembers)
	ctx := context.Background()
	result, err := f.svc.CreateTier(ctx, fullInput(f))
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteTier(ctx, result.Tier.ID))

	listed, err := f.overrides.ListOverrides(ctx, result.Tier.ID)
	require.NoError(t, err)
	assert.Empty(t, listed)
	assert.Zero(t, f.count(t, &models.TierOverride{}))
	assert.Zero(t, f.count(t, &models.CustomerTier{}))

	_, err = f.svc.GetTier(ctx, result.Tier.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assert.True(t, pkgerrors.IsCode(f.svc.DeleteTier(ctx, result.Tier.ID), pkgerrors.CodeNotFound))
}

func TestDeleteTierFailureKeepsEverything(t *testing.T) {
	f := newFixture(t, defaultMembers)
	ctx := context.Background()
	result, err := f.svc.CreateTier(ctx, fullInput(f))
	require.NoError(t, err)
	failOn(t, f.db, "delete", "customer_tiers")

	err = f.svc.DeleteTier(ctx, result.Tier.ID)
	require.Error(t, err)
	assert.Equal(t, StepDeleteAssignments, pkgerrors.As(err).Step())

	assert.EqualValues(t, 1, f.count(t, &models.AllocationTier{}))
	assert.EqualValues(t, 1, f.count(t, &models.TierOverride{}))
	assert.EqualValues(t, 1, f.count(t, &models.TierProductOverride{}))
	assert.EqualValues(t, 4, f.count(t, &models.CustomerTier{}))
}

func TestAddAndRemoveSources(t *testing.T) {
	f := newFixture(t, defaultMembers)
	ctx := context.Background()
	created, err := f.svc.CreateTier(ctx, f.input(1))
	require.NoError(t, err)
	assert.Zero(t, created.Tier.CustomerCount)

	sources := audience.Sources{enums.SourceKindTag: {{ID: "vip"}}}
	members, err := f.svc.AddSources(ctx, created.Tier.ID, sources)
	require.NoError(t, err)
	assert.Equal(t, 2, members.CustomerCount)

	members, err = f.svc.AddSources(ctx, created.Tier.ID, audience.Sources{
		enums.SourceKindTag:  {{ID: "vip"}},
		enums.SourceKindClub: {{ID: "wine"}},
	})
	require.NoError(t, err)
	assert.Len(t, members.Assignments, 3)
	assert.Equal(t, 2, members.CustomerCount)

	members, err = f.svc.RemoveSource(ctx, created.Tier.ID, enums.SourceKindTag, "vip")
	require.NoError(t, err)
	assert.Len(t, members.Assignments, 1)
	assert.Equal(t, 1, members.CustomerCount)

	tier, err := f.svc.GetTier(ctx, created.Tier.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, tier.CustomerCount)
}

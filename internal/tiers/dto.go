package tiers

import (
	"time"

	"github.com/angelmondragon/allocations-backend/internal/audience"
	"github.com/angelmondragon/allocations-backend/pkg/db/models"
	"github.com/google/uuid"
)

type TierDTO struct {
	ID                  uuid.UUID `json:"id"`
	AllocationID        uuid.UUID `json:"allocation_id"`
	Name                string    `json:"name"`
	Level               int       `json:"level"`
	AccessStart         time.Time `json:"access_start"`
	AccessEnd           time.Time `json:"access_end"`
	CustomerCount       int       `json:"customer_count"`
	HasProductOverrides bool      `json:"has_product_overrides"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// CreateTierResult reports the created tier next to both audience counts:
// the raw estimate from source cardinalities and the deduplicated member count.
type CreateTierResult struct {
	Tier               TierDTO `json:"tier"`
	EstimatedCustomers int     `json:"estimated_customers"`
	UnknownCardinality int     `json:"unknown_cardinality"`
	ExactCustomers     int     `json:"exact_customers"`
}

type MembershipDTO struct {
	TierID         uuid.UUID             `json:"tier_id"`
	CustomerCount  int                   `json:"customer_count"`
	ExactCustomers int                   `json:"exact_customers"`
	Assignments    []audience.Assignment `json:"assignments"`
}

func tierDTO(m models.AllocationTier) TierDTO {
	return TierDTO{
		ID:                  m.ID,
		AllocationID:        m.AllocationID,
		Name:                m.Name,
		Level:               m.Level,
		AccessStart:         m.AccessStart,
		AccessEnd:           m.AccessEnd,
		CustomerCount:       m.CustomerCount,
		HasProductOverrides: m.HasProductOverrides,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

func assignmentsFromModels(rows []models.CustomerTier) []audience.Assignment {
	out := make([]audience.Assignment, 0, len(rows))
	for _, row := range rows {
		out = append(out, audience.Assignment{
			SourceType: row.SourceType,
			SourceID:   row.SourceID,
			CustomerID: row.CustomerID,
		})
	}
	return out
}

func assignmentModels(allocationID, tierID uuid.UUID, assignments []audience.Assignment) []models.CustomerTier {
	rows := make([]models.CustomerTier, 0, len(assignments))
	for _, a := range assignments {
		rows = append(rows, models.CustomerTier{
			AllocationID: allocationID,
			TierID:       tierID,
			CustomerID:   a.CustomerID,
			SourceType:   a.SourceType,
			SourceID:     a.SourceID,
		})
	}
	return rows
}

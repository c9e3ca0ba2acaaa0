package allocations

import (
	"math"
	"time"

	"github.com/angelmondragon/allocations-backend/pkg/db/models"
	"github.com/angelmondragon/allocations-backend/pkg/enums"
)

const day = 24 * time.Hour

// ComputeProgress returns how far now is through [start, end] as a whole
// percentage in [0, 100]. Day counts are rounded up. A window that is empty or
// inverted reports 100.
func ComputeProgress(start, end, now time.Time) int {
	total := ceilDays(end.Sub(start))
	if total <= 0 {
		return 100
	}
	remaining := ceilDays(end.Sub(now))
	pct := float64(total-remaining) / float64(total) * 100
	return int(math.Round(math.Max(0, math.Min(100, pct))))
}

func ceilDays(d time.Duration) int {
	return int(math.Ceil(float64(d) / float64(day)))
}

// TypeSummary describes tier coverage of an allocation. For individual
// allocations Applicable is false and the counts carry no meaning.
type TypeSummary struct {
	Applicable     bool `json:"applicable"`
	TierCount      int  `json:"tier_count"`
	TotalCustomers int  `json:"total_customers"`
}

// SummarizeType sums cached tier customer counts. A customer in two tiers counts twice.
func SummarizeType(allocation models.Allocation, tiers []models.AllocationTier) TypeSummary {
	if allocation.Type != enums.AllocationTypeTier {
		return TypeSummary{}
	}
	summary := TypeSummary{Applicable: true, TierCount: len(tiers)}
	for _, tier := range tiers {
		summary.TotalCustomers += tier.CustomerCount
	}
	return summary
}

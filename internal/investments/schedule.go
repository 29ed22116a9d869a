package investments

import (
	"github.com/shopspring/decimal"

	"github.com/innocapforge/forge-backend/pkg/db/models"
	"github.com/innocapforge/forge-backend/pkg/money"
)

// Schedule splits amount across milestones by weight in whole cents. Leftover
// cents go to the phases with the largest fractional share, so no phase is
// negative and the phases always sum to amount.
func Schedule(amount decimal.Decimal, milestones []models.Milestone) []decimal.Decimal {
	if len(milestones) == 0 {
		return nil
	}
	weights := make([]float64, len(milestones))
	for i, m := range milestones {
		weights[i] = m.CompletionPercentage
	}
	return money.Allocate(amount, weights)
}

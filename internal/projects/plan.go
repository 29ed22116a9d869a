package projects

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/innocapforge/forge-backend/pkg/errors"
)

// WeightTolerance is the allowed drift of a milestone weight sum from 100.
const WeightTolerance = 0.01

// ValidateWeights checks that every weight is in (0, 100] and that they sum to
// 100 within WeightTolerance.
func ValidateWeights(weights []float64) error {
	if len(weights) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one milestone is required")
	}
	sum := 0.0
	for i, w := range weights {
		if math.IsNaN(w) || w <= 0 || w > 100 {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "milestone %d: completion_percentage must be in (0, 100]", i+1)
		}
		sum += w
	}
	// float sums of two-decimal weights drift by a few ulps
	if math.Abs(sum-100) > WeightTolerance+1e-9 {
		return pkgerrors.New(pkgerrors.CodeValidation, "milestone completion percentages must sum to 100").
			WithDetails(map[string]any{"sum": math.Round(sum*100) / 100})
	}
	return nil
}

// ValidatePlan enforces the project-level milestone invariants: weights sum
// to 100, due dates never go backwards and estimated funding fits the goal.
func ValidatePlan(goal decimal.Decimal, plan []MilestoneInput) error {
	weights := make([]float64, len(plan))
	total := decimal.Zero
	var prev time.Time
	for i, m := range plan {
		weights[i] = m.CompletionPercentage
		if m.DueDate.IsZero() {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "milestone %d: due_date is required", i+1)
		}
		if i > 0 && m.DueDate.Before(prev) {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "milestone %d: due_date is before the previous milestone", i+1)
		}
		prev = m.DueDate
		if m.EstimatedFunding.IsNegative() {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "milestone %d: estimated_funding must not be negative", i+1)
		}
		total = total.Add(m.EstimatedFunding)
	}
	if err := ValidateWeights(weights); err != nil {
		return err
	}
	if total.GreaterThan(goal) {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("estimated funding %s exceeds funding goal %s", total.StringFixed(2), goal.StringFixed(2)))
	}
	return nil
}

// Package money holds the currency rules shared by investments, escrow and
// project funding. Amounts are stored as numeric(14,2).
package money

import (
	"sort"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/innocapforge/forge-backend/pkg/errors"
)

// Scale is the number of fractional digits kept for currency amounts.
const Scale = 2

var maxAmount = decimal.RequireFromString("999999999999.99")

// HasCentPrecision reports whether the amount carries at most two decimals.
func HasCentPrecision(amount decimal.Decimal) bool {
	return amount.Equal(amount.Round(Scale))
}

// ValidatePositive rejects zero, negative, sub-cent and out-of-range amounts.
func ValidatePositive(field string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "%s must be greater than zero", field)
	}
	if !HasCentPrecision(amount) {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "%s must have at most two decimal places", field)
	}
	if amount.GreaterThan(maxAmount) {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "%s is too large", field)
	}
	return nil
}

// Percent returns part / whole * 100. A non-positive whole yields 0.
func Percent(part, whole decimal.Decimal) float64 {
	if !whole.IsPositive() {
		return 0
	}
	f, _ := part.Mul(decimal.NewFromInt(100)).Div(whole).Float64()
	return f
}

// Sum adds amounts.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

var cent = decimal.New(1, -Scale)

// Allocate splits amount across weights in cents using the largest remainder
// method. Weights are normalised by their total, every part is non-negative,
// and the parts always sum to amount. Ties go to the earlier part.
func Allocate(amount decimal.Decimal, weights []float64) []decimal.Decimal {
	if len(weights) == 0 {
		return nil
	}
	total := decimal.Zero
	for _, w := range weights {
		if w > 0 {
			total = total.Add(decimal.NewFromFloat(w))
		}
	}
	out := make([]decimal.Decimal, len(weights))
	for i := range out {
		out[i] = decimal.Zero
	}
	if !total.IsPositive() || !amount.IsPositive() {
		out[len(out)-1] = amount
		return out
	}

	remainders := make([]decimal.Decimal, len(weights))
	allocated := decimal.Zero
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		exact := amount.Mul(decimal.NewFromFloat(w)).Div(total)
		out[i] = exact.Truncate(Scale)
		remainders[i] = exact.Sub(out[i])
		allocated = allocated.Add(out[i])
	}

	order := make([]int, len(weights))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return remainders[order[a]].GreaterThan(remainders[order[b]])
	})

	leftover := amount.Sub(allocated)
	for leftover.GreaterThanOrEqual(cent) {
		for _, i := range order {
			if leftover.LessThan(cent) {
				break
			}
			if weights[i] <= 0 {
				continue
			}
			out[i] = out[i].Add(cent)
			leftover = leftover.Sub(cent)
		}
	}
	// division rounding can overshoot by a cent; take it back from the
	// smallest remainders first
	for j := len(order) - 1; leftover.IsNegative() && j >= 0; j-- {
		if i := order[j]; out[i].GreaterThanOrEqual(cent) {
			out[i] = out[i].Sub(cent)
			leftover = leftover.Add(cent)
		}
	}
	return out
}

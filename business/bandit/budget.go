package bandit

import (
	"math"

	"adBudgetEngine/domain"
)

// BudgetForArms turns arm weights into money. The total handed out is the
// increment, capped at dailyCap when dailyCap > 0. Amounts are whole cents
// and sum exactly to that total.
func BudgetForArms(arms []domain.Arm, increment, dailyCap float64) []domain.ArmBudget {
	total := increment
	if dailyCap > 0 && total > dailyCap {
		total = dailyCap
	}
	if total <= 0 || len(arms) == 0 {
		return []domain.ArmBudget{}
	}

	weightSum := 0.0
	for _, a := range arms {
		if a.Weight > 0 {
			weightSum += a.Weight
		}
	}
	if weightSum <= 0 {
		return []domain.ArmBudget{}
	}

	totalCents := int64(math.Round(total * 100))
	out := make([]domain.ArmBudget, 0, len(arms))
	cents := make([]int64, 0, len(arms))
	var assigned int64
	largest := -1

	for _, a := range arms {
		if a.Weight <= 0 {
			continue
		}
		w := a.Weight / weightSum
		c := int64(math.Round(w * float64(totalCents)))
		out = append(out, domain.ArmBudget{CreativeID: a.CreativeID, Geo: a.Geo, Weight: w})
		cents = append(cents, c)
		assigned += c
		if largest < 0 || w > out[largest].Weight {
			largest = len(out) - 1
		}
	}
	cents[largest] += totalCents - assigned

	for i := range out {
		out[i].Amount = float64(cents[i]) / 100
	}
	return out
}

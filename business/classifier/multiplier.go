package classifier

import "adBudgetEngine/domain"

const defaultMultiplierK = 1.0

// CTRMultiplier maps confidence to a predicted-CTR multiplier of 1 + k*c.
// Low-confidence labels never get the optimistic boost.
func CTRMultiplier(cl domain.Classification, k float64) float64 {
	if cl.LowConfidence {
		return 1.0
	}
	if k <= 0 {
		k = defaultMultiplierK
	}
	return 1 + k*clamp01(cl.Confidence)
}

// PredictedCTR applies the multiplier to a base click-through rate.
func PredictedCTR(baseCTR float64, cl domain.Classification, k float64) float64 {
	return baseCTR * CTRMultiplier(cl, k)
}

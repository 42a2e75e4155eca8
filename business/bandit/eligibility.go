package bandit

import (
	"context"

	"adBudgetEngine/domain"
)

// EligibilityChecker decides whether a creative may receive budget this
// cycle. Ineligible arms stay stored with zero weight.
type EligibilityChecker interface {
	IsEligible(ctx context.Context, creative domain.Creative) (bool, error)
}

// StatusEligibilityChecker is the default: everything but retired creatives.
type StatusEligibilityChecker struct{}

func (StatusEligibilityChecker) IsEligible(ctx context.Context, creative domain.Creative) (bool, error) {
	return creative.Status != domain.CreativeRetired, nil
}

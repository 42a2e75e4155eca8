package bandit

import (
	"context"
	"fmt"
	"sort"

	"adBudgetEngine/domain"
)

type candidate struct {
	arm      domain.Arm
	eligible bool
	cold     bool
	selected bool
	mean     float64
	bonus    float64
}

// loadCandidates builds one arm per (creative, allocated geo), carrying
// over stored selection counts and refreshing reward counts from the
// ledger window.
func (s *Service) loadCandidates(ctx context.Context, campaignID string, cfg Config) ([]*candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	creatives, err := s.creatives.ListCreatives(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("load creatives: %w", err)
	}
	if len(creatives) == 0 {
		return nil, nil
	}

	allocs, err := s.allocations.ListAllocations(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("load allocations: %w", err)
	}
	if len(allocs) == 0 {
		return nil, fmt.Errorf("%s: %w: %w", campaignID, errNoGeos, domain.ErrInvalidState)
	}

	stored, err := s.armRepo.ListArms(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("load arms: %w", err)
	}
	storedByKey := make(map[string]domain.Arm, len(stored))
	for _, a := range stored {
		storedByKey[a.Key()] = a
	}

	now := s.clock.Now()
	aggs, err := s.stats.AggregateBy(ctx, domain.LedgerQuery{
		CampaignID: campaignID,
		From:       windowStart(now, cfg),
		To:         now,
	}, domain.GroupArm)
	if err != nil {
		return nil, fmt.Errorf("load arm stats: %w", err)
	}
	aggByKey := make(map[string]domain.AttributionAggregate, len(aggs))
	for _, a := range aggs {
		aggByKey[a.CreativeID+"|"+a.Geo] = a
	}

	out := make([]*candidate, 0, len(creatives)*len(allocs))
	for _, cr := range creatives {
		ok, err := s.eligChecker.IsEligible(ctx, cr)
		if err != nil {
			return nil, fmt.Errorf("eligibility for %s: %w", cr.ID, err)
		}

		for _, al := range allocs {
			arm := domain.Arm{CampaignID: campaignID, CreativeID: cr.ID, Geo: al.Geo}
			if prev, found := storedByKey[arm.Key()]; found {
				arm = prev
			}
			arm.PullCount, arm.Successes, arm.Failures = armStats(aggByKey[arm.Key()])

			out = append(out, &candidate{arm: arm, eligible: ok})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].arm.Key() < out[j].arm.Key() })
	return out, nil
}

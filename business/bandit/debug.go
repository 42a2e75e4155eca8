package bandit

import (
	"context"
	"fmt"

	"adBudgetEngine/domain"
	"adBudgetEngine/pkg/logger"
)

// DebugArms scores the campaign's arms like SelectArms but persists
// nothing, returning the score components for inspection.
func (s *Service) DebugArms(ctx context.Context, campaignID string, k int) ([]domain.DebugArm, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	cfg := s.loadConfig(ctx, campaignID)
	if k <= 0 {
		k = cfg.TopK
	}

	cands, err := s.loadCandidates(ctx, campaignID, cfg)
	if err != nil {
		return nil, err
	}

	policy := s.scoreCandidates(cands, cfg)
	for _, c := range pickTop(cands, k) {
		c.selected = true
	}

	tid := TraceIDFromContext(ctx)
	logger.Debug("bandit_debug_arms",
		"trace_id", tid,
		"campaign_id", campaignID,
		"policy", policy,
		"k", k,
	)

	out := make([]domain.DebugArm, 0, len(cands))
	for _, c := range cands {
		out = append(out, domain.DebugArm{
			CreativeID: c.arm.CreativeID,
			Geo:        c.arm.Geo,
			PullCount:  c.arm.PullCount,
			Mean:       c.mean,
			Bonus:      c.bonus,
			Score:      c.arm.Score,
			Policy:     c.arm.Policy,
			Eligible:   c.eligible,
			Selected:   c.selected,
		})
	}
	return out, nil
}

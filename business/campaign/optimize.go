package campaign

import (
	"context"
	"fmt"

	"adBudgetEngine/business/bandit"
	"adBudgetEngine/domain"
	"adBudgetEngine/pkg/logger"
)

// TriggerOptimization runs a manual reinvestment cycle and reports how the
// bandit would spread the increment over arms. Repeating it inside the same
// window returns the existing cycle without a new arm selection.
func (s *Service) TriggerOptimization(ctx context.Context, id string) (domain.OptimizationResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.OptimizationResult{}, fmt.Errorf("context error: %w", err)
	}
	if s.cfg.Reinvest == nil {
		return domain.OptimizationResult{}, fmt.Errorf("reinvestment not configured: %w", domain.ErrInvalidState)
	}

	c, err := s.load(ctx, id)
	if err != nil {
		return domain.OptimizationResult{}, err
	}
	if !c.Running() {
		return domain.OptimizationResult{}, fmt.Errorf("campaign %s is %s: %w", id, c.Status, domain.ErrInvalidState)
	}

	res, err := s.cfg.Reinvest.Evaluate(ctx, id, domain.TriggerManual)
	if err != nil {
		return domain.OptimizationResult{}, err
	}

	cycle := res.Cycle
	out := domain.OptimizationResult{
		CampaignID: id,
		Cycle:      &cycle,
		Duplicate:  res.Duplicate,
	}
	if cycle.Status == domain.CycleStatusFailed {
		out.Warnings = append(out.Warnings, "cycle failed: "+cycle.FailureReason)
	}

	allocs, err := s.cfg.Geo.GetAllocation(ctx, id)
	if err != nil {
		out.Warnings = append(out.Warnings, "allocation unavailable: "+err.Error())
	}
	out.Allocation = allocs

	// a repeated trigger reuses the window's decision; selecting again would
	// inflate arm counts
	if s.cfg.Bandit != nil && !res.Duplicate {
		arms, err := s.cfg.Bandit.SelectArms(bandit.WithTraceID(ctx, cycle.ID), id, 0)
		if err != nil {
			logger.Warn("select_arms_failed", "campaign_id", id, "error", err)
			out.Warnings = append(out.Warnings, "arm selection failed: "+err.Error())
		} else {
			out.Arms = arms
			if cycle.Status == domain.CycleStatusReinvested {
				out.ArmBudgets = bandit.BudgetForArms(arms, cycle.BudgetIncrement, c.DailyBudget)
			}
		}
	}

	return out, nil
}

// CancelOptimization cancels the campaign's in-flight cycle.
func (s *Service) CancelOptimization(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("context error: %w", err)
	}
	if _, err := s.load(ctx, id); err != nil {
		return false, err
	}
	if s.cfg.Reinvest == nil {
		return false, nil
	}
	return s.cfg.Reinvest.Cancel(id), nil
}

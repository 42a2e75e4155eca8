package reinvest

import (
	"context"
	"fmt"

	"adBudgetEngine/domain"
	"adBudgetEngine/pkg/logger"
	"adBudgetEngine/pkg/metrics"

	"gorm.io/datatypes"
)

// finish closes a cycle as reinvested or skipped. Either ends a failure
// streak.
func (s *Scheduler) finish(ctx context.Context, campaign domain.Campaign, cycle domain.ReinvestmentCycle, status domain.CycleStatus) (Result, error) {
	now := s.cfg.Clock.Now()
	cycle.Status = status
	cycle.CompletedAt = &now

	if err := s.cfg.Cycles.UpdateCycle(ctx, cycle); err != nil {
		return Result{Cycle: cycle}, fmt.Errorf("save cycle: %w", err)
	}
	if campaign.ConsecutiveFailures > 0 {
		if err := s.cfg.Campaigns.SetConsecutiveFailures(ctx, campaign.ID, 0); err != nil {
			logger.Warn("reset_failures_failed", "campaign_id", campaign.ID, "error", err)
		}
	}

	metrics.ReinvestmentCycles.WithLabelValues(string(status)).Inc()
	s.recordDecision(ctx, cycle)

	logger.Info("reinvest_cycle_done",
		"campaign_id", campaign.ID,
		"cycle_id", cycle.ID,
		"window_id", cycle.WindowID,
		"status", status,
		"selected", cycle.SelectedCreativeIDs,
		"increment", cycle.BudgetIncrement,
	)
	return Result{Cycle: cycle}, nil
}

// failed closes a cycle as failed. Only ad platform failures count towards
// escalation; the window is retried on the next trigger either way.
func (s *Scheduler) failed(ctx context.Context, campaign domain.Campaign, cycle domain.ReinvestmentCycle, cause error, external bool) (Result, error) {
	ctx = context.WithoutCancel(ctx)
	now := s.cfg.Clock.Now()
	cycle.Status = domain.CycleStatusFailed
	cycle.FailureReason = cause.Error()
	cycle.CompletedAt = &now

	if err := s.cfg.Cycles.UpdateCycle(ctx, cycle); err != nil {
		return Result{Cycle: cycle}, fmt.Errorf("save cycle: %w", err)
	}
	metrics.ReinvestmentCycles.WithLabelValues(string(domain.CycleStatusFailed)).Inc()

	s.appendLog(ctx, domain.OperatorLogEntry{
		CampaignID: campaign.ID,
		CycleID:    cycle.ID,
		Kind:       domain.LogCycleFailed,
		Reason:     cycle.FailureReason,
		Details: datatypes.JSONMap{
			"window_id": cycle.WindowID,
			"attempts":  cycle.Attempts,
			"external":  external,
		},
	})

	logger.Warn("reinvest_cycle_failed",
		"campaign_id", campaign.ID,
		"cycle_id", cycle.ID,
		"window_id", cycle.WindowID,
		"attempts", cycle.Attempts,
		"error", cause,
	)

	if !external {
		return Result{Cycle: cycle}, nil
	}

	streak := campaign.ConsecutiveFailures + 1
	if err := s.cfg.Campaigns.SetConsecutiveFailures(ctx, campaign.ID, streak); err != nil {
		logger.Warn("set_failures_failed", "campaign_id", campaign.ID, "error", err)
	}
	if streak >= s.cfg.Policy.MaxConsecutiveFails {
		s.escalate(ctx, campaign, cycle, streak)
	}
	return Result{Cycle: cycle}, nil
}

func (s *Scheduler) escalate(ctx context.Context, campaign domain.Campaign, cycle domain.ReinvestmentCycle, streak int) {
	reason := fmt.Sprintf("%d consecutive reinvestment failures, automatic retries stopped", streak)

	s.appendLog(ctx, domain.OperatorLogEntry{
		CampaignID: campaign.ID,
		CycleID:    cycle.ID,
		Kind:       domain.LogCycleEscalated,
		Reason:     reason,
		Details: datatypes.JSONMap{
			"last_error": cycle.FailureReason,
			"window_id":  cycle.WindowID,
		},
	})

	if s.cfg.Alerter == nil {
		return
	}
	subject := fmt.Sprintf("[adBudgetEngine] campaign %s needs attention", campaign.ID)
	body := fmt.Sprintf("Campaign %s (platform id %s): %s.\nLast error: %s\nCycle: %s window %s",
		campaign.ID, campaign.PlatformCampaignID, reason, cycle.FailureReason, cycle.ID, cycle.WindowID)
	if err := s.cfg.Alerter.AlertOperator(ctx, subject, body); err != nil {
		logger.Error("operator_alert_failed", "campaign_id", campaign.ID, "error", err)
	}
}

// cancelled closes a cycle whose context ended before the platform call.
// Nothing was applied.
func (s *Scheduler) cancelled(ctx context.Context, campaign domain.Campaign, cycle domain.ReinvestmentCycle) (Result, error) {
	ctx = context.WithoutCancel(ctx)
	now := s.cfg.Clock.Now()
	cycle.Status = domain.CycleStatusCancelled
	cycle.CompletedAt = &now

	if err := s.cfg.Cycles.UpdateCycle(ctx, cycle); err != nil {
		return Result{Cycle: cycle}, fmt.Errorf("save cycle: %w", err)
	}
	metrics.ReinvestmentCycles.WithLabelValues(string(domain.CycleStatusCancelled)).Inc()

	s.appendLog(ctx, domain.OperatorLogEntry{
		CampaignID: campaign.ID,
		CycleID:    cycle.ID,
		Kind:       domain.LogCycleCancelled,
		Reason:     "cycle cancelled before the ad platform call",
		Details:    datatypes.JSONMap{"window_id": cycle.WindowID},
	})
	logger.Info("reinvest_cycle_cancelled", "campaign_id", campaign.ID, "cycle_id", cycle.ID)

	return Result{Cycle: cycle}, nil
}

func (s *Scheduler) recordDecision(ctx context.Context, cycle domain.ReinvestmentCycle) {
	if s.cfg.Decisions == nil {
		return
	}
	rec := domain.DecisionRecord{
		CampaignID: cycle.CampaignID,
		Kind:       domain.DecisionReinvestment,
		Context: datatypes.JSONMap{
			"cycle_id":  cycle.ID,
			"window_id": cycle.WindowID,
			"status":    string(cycle.Status),
			"roi":       map[string]any(cycle.ROISnapshot),
			"selected":  []string(cycle.SelectedCreativeIDs),
			"increment": cycle.BudgetIncrement,
			"trigger":   string(cycle.Trigger),
			"attempts":  cycle.Attempts,
		},
	}
	if err := s.cfg.Decisions.SaveDecision(ctx, rec); err != nil {
		logger.Warn("save_decision_failed", "campaign_id", cycle.CampaignID, "error", err)
	}
}

func (s *Scheduler) appendLog(ctx context.Context, entry domain.OperatorLogEntry) {
	if s.cfg.OpLog == nil {
		return
	}
	if err := s.cfg.OpLog.Append(ctx, entry); err != nil {
		logger.Warn("operator_log_failed", "campaign_id", entry.CampaignID, "kind", entry.Kind, "error", err)
	}
}

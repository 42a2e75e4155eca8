package reinvest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"adBudgetEngine/business/geo"
	"adBudgetEngine/domain"
	"adBudgetEngine/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Result is the outcome of one Evaluate call.
type Result struct {
	Cycle     domain.ReinvestmentCycle
	Duplicate bool
	Boosts    map[string]float64
}

type creativeROI struct {
	CreativeID string
	Revenue    float64
	Spend      float64
	ROI        float64
}

// Evaluate runs one reinvestment cycle for the campaign's last complete
// window: monitoring -> evaluating -> reinvested | skipped | failed |
// cancelled -> monitoring. A window that already reinvested, skipped or was
// cancelled is a no-op; a failed window is retried.
func (s *Scheduler) Evaluate(ctx context.Context, campaignID string, trigger domain.CycleTrigger) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("context error: %w", err)
	}

	// 1) one cycle per campaign at a time
	key := leaseKey(campaignID)
	token, ok, err := s.cfg.Lease.Acquire(ctx, key, s.cfg.Policy.LeaseTTL)
	if err != nil {
		return Result{}, fmt.Errorf("acquire lease: %w", err)
	}
	if !ok {
		return Result{}, ErrCycleInProgress
	}
	defer func() {
		if err := s.cfg.Lease.Release(context.WithoutCancel(ctx), key, token); err != nil {
			logger.Warn("lease_release_failed", "campaign_id", campaignID, "error", err)
		}
	}()

	ctx, cancel := context.WithCancelCause(ctx)
	s.track(campaignID, cancel)
	defer s.untrack(campaignID)

	// 2) campaign must be live
	campaign, ok, err := s.cfg.Campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return Result{}, fmt.Errorf("load campaign: %w", err)
	}
	if !ok {
		return Result{}, fmt.Errorf("campaign %s: %w", campaignID, domain.ErrNotFound)
	}
	if !campaign.Running() {
		return Result{}, fmt.Errorf("campaign %s is %s: %w", campaignID, campaign.Status, domain.ErrInvalidState)
	}

	policy := s.policyFor(ctx, campaignID)
	now := s.cfg.Clock.Now()
	win := EvaluatedWindow(now, policy.Window)

	// 3) idempotency on (campaign_id, window_id)
	cycle, dup, err := s.openCycle(ctx, campaignID, win, trigger)
	if err != nil {
		return Result{}, err
	}
	if dup {
		logger.Info("reinvest_duplicate_window",
			"campaign_id", campaignID,
			"window_id", win.ID(),
			"status", cycle.Status,
		)
		return Result{Cycle: cycle, Duplicate: true}, nil
	}

	s.enterEvaluating(ctx, campaign)
	defer s.leaveEvaluating(context.WithoutCancel(ctx), campaignID)

	return s.run(ctx, campaign, cycle, win, policy)
}

func (s *Scheduler) openCycle(ctx context.Context, campaignID string, win Window, trigger domain.CycleTrigger) (domain.ReinvestmentCycle, bool, error) {
	now := s.cfg.Clock.Now()

	cycle, found, err := s.cfg.Cycles.FindCycle(ctx, campaignID, win.ID())
	if err != nil {
		return domain.ReinvestmentCycle{}, false, fmt.Errorf("find cycle: %w", err)
	}

	if !found {
		cycle = domain.ReinvestmentCycle{
			ID:          uuid.NewString(),
			CampaignID:  campaignID,
			WindowID:    win.ID(),
			Trigger:     trigger,
			Status:      domain.CycleStatusEvaluating,
			TriggeredAt: now,
		}
		created, err := s.cfg.Cycles.CreateCycle(ctx, cycle)
		if err != nil {
			return domain.ReinvestmentCycle{}, false, fmt.Errorf("create cycle: %w", err)
		}
		if created {
			return cycle, false, nil
		}
		// lost a race with another node; take whatever it wrote
		cycle, found, err = s.cfg.Cycles.FindCycle(ctx, campaignID, win.ID())
		if err != nil {
			return domain.ReinvestmentCycle{}, false, fmt.Errorf("find cycle: %w", err)
		}
		if !found {
			return domain.ReinvestmentCycle{}, false, fmt.Errorf("cycle %s/%s vanished: %w", campaignID, win.ID(), domain.ErrInvalidState)
		}
	}

	if cycle.Status.Final() {
		return cycle, true, nil
	}

	// failed or interrupted: reuse the row so the idempotency id stays stable
	cycle.Trigger = trigger
	cycle.Status = domain.CycleStatusEvaluating
	cycle.FailureReason = ""
	cycle.TriggeredAt = now
	cycle.CompletedAt = nil
	if err := s.cfg.Cycles.UpdateCycle(ctx, cycle); err != nil {
		return domain.ReinvestmentCycle{}, false, fmt.Errorf("reopen cycle: %w", err)
	}
	return cycle, false, nil
}

func (s *Scheduler) enterEvaluating(ctx context.Context, campaign domain.Campaign) {
	if err := s.cfg.Campaigns.SetCycleState(ctx, campaign.ID, domain.CycleEvaluating); err != nil {
		logger.Warn("set_cycle_state_failed", "campaign_id", campaign.ID, "error", err)
	}
	if _, err := s.cfg.Campaigns.TransitionStatus(ctx, campaign.ID, domain.CampaignActive, domain.CampaignReinvesting); err != nil {
		logger.Warn("set_status_failed", "campaign_id", campaign.ID, "error", err)
	}
}

func (s *Scheduler) leaveEvaluating(ctx context.Context, campaignID string) {
	if err := s.cfg.Campaigns.SetCycleState(ctx, campaignID, domain.CycleMonitoring); err != nil {
		logger.Warn("set_cycle_state_failed", "campaign_id", campaignID, "error", err)
	}
	// a pause during the cycle wins
	if _, err := s.cfg.Campaigns.TransitionStatus(ctx, campaignID, domain.CampaignReinvesting, domain.CampaignActive); err != nil {
		logger.Warn("set_status_failed", "campaign_id", campaignID, "error", err)
	}
}

func (s *Scheduler) run(ctx context.Context, campaign domain.Campaign, cycle domain.ReinvestmentCycle, win Window, policy Policy) (Result, error) {
	// 1) ROI per creative over the window
	rois, err := s.creativeROI(ctx, campaign.ID, win)
	if err != nil {
		if ctx.Err() != nil {
			return s.interrupted(ctx, campaign, cycle)
		}
		return s.failed(ctx, campaign, cycle, fmt.Errorf("read ledger: %w", err), false)
	}
	cycle.ROISnapshot = roiSnapshot(rois)

	// 2) qualify and rank
	winners := topByROI(rois, policy.ROIThreshold, policy.TopN)
	if len(winners) == 0 {
		return s.finish(ctx, campaign, cycle, domain.CycleStatusSkipped)
	}

	boosts := make(map[string]float64, len(winners))
	ids := make([]string, 0, len(winners))
	for _, w := range winners {
		boosts[w.CreativeID] = policy.Increment
		ids = append(ids, w.CreativeID)
	}
	cycle.SelectedCreativeIDs = ids
	cycle.BudgetIncrement = policy.Increment * float64(len(winners))

	newBudget := campaign.DailyBudget + cycle.BudgetIncrement
	allocs, err := s.currentAllocations(ctx, campaign.ID)
	if err != nil {
		if ctx.Err() != nil {
			return s.interrupted(ctx, campaign, cycle)
		}
		return s.failed(ctx, campaign, cycle, err, false)
	}
	rescaled := geo.Rescale(allocs, newBudget, s.cfg.Clock.Now())

	upd := domain.BudgetUpdate{
		DailyBudget:    newBudget,
		GeoBudgets:     geoBudgets(rescaled),
		CreativeBoosts: boosts,
		IdempotencyID:  cycle.ID,
	}

	// 3) last point where cancellation is clean
	if ctx.Err() != nil {
		return s.interrupted(ctx, campaign, cycle)
	}

	// 4) the irreversible step
	if err := s.cfg.Platform.UpdateBudget(ctx, campaign.PlatformCampaignID, upd); err != nil {
		attempts := 1
		var ext *domain.ExternalCallFailure
		if errors.As(err, &ext) && ext.Attempts > 0 {
			attempts = ext.Attempts
		}
		cycle.Attempts += attempts
		// a context that ended mid-call says nothing about the platform
		external := ctx.Err() == nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		return s.failed(ctx, campaign, cycle, err, external)
	}
	cycle.Attempts++

	// 5) bookkeeping must land even if the caller gave up meanwhile
	bctx := context.WithoutCancel(ctx)
	if err := s.cfg.Campaigns.SetDailyBudget(bctx, campaign.ID, newBudget); err != nil {
		logger.Error("set_daily_budget_failed", "campaign_id", campaign.ID, "error", err)
	}
	if s.cfg.Allocations != nil && len(rescaled) > 0 {
		if err := s.cfg.Allocations.ReplaceAllocations(bctx, campaign.ID, rescaled); err != nil {
			logger.Error("rescale_allocations_failed", "campaign_id", campaign.ID, "error", err)
		}
	}
	if s.cfg.Creatives != nil {
		for _, id := range ids {
			if err := s.cfg.Creatives.SetCreativeStatus(bctx, id, domain.CreativeBoosted); err != nil {
				logger.Warn("boost_creative_failed", "campaign_id", campaign.ID, "creative_id", id, "error", err)
			}
		}
	}

	res, err := s.finish(bctx, campaign, cycle, domain.CycleStatusReinvested)
	res.Boosts = boosts
	return res, err
}

// interrupted handles a cycle context that ended before the platform call.
// Only Cancel closes the window; shutdown, timeouts and disconnects leave a
// failed cycle that the next trigger reopens.
func (s *Scheduler) interrupted(ctx context.Context, campaign domain.Campaign, cycle domain.ReinvestmentCycle) (Result, error) {
	if errors.Is(context.Cause(ctx), errCycleCancelled) {
		return s.cancelled(ctx, campaign, cycle)
	}
	return s.failed(ctx, campaign, cycle, fmt.Errorf("cycle interrupted: %w", ctx.Err()), false)
}

func (s *Scheduler) creativeROI(ctx context.Context, campaignID string, win Window) ([]creativeROI, error) {
	q := domain.LedgerQuery{CampaignID: campaignID, From: win.Start, To: win.End()}

	events, err := s.cfg.Ledger.AggregateBy(ctx, q, domain.GroupCreative)
	if err != nil {
		return nil, err
	}
	spend, err := s.cfg.Ledger.SpendBy(ctx, q, domain.GroupCreative)
	if err != nil {
		return nil, err
	}

	byID := map[string]*creativeROI{}
	get := func(id string) *creativeROI {
		r, ok := byID[id]
		if !ok {
			r = &creativeROI{CreativeID: id}
			byID[id] = r
		}
		return r
	}
	for _, e := range events {
		get(e.CreativeID).Revenue = e.Revenue
	}
	for _, sp := range spend {
		get(sp.CreativeID).Spend = sp.Amount
	}

	out := make([]creativeROI, 0, len(byID))
	for _, r := range byID {
		if r.Spend > 0 {
			r.ROI = r.Revenue / r.Spend
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreativeID < out[j].CreativeID })
	return out, nil
}

// topByROI keeps creatives strictly above the threshold, best first.
// Creatives without spend have no ROI and never qualify.
func topByROI(rois []creativeROI, threshold float64, n int) []creativeROI {
	var q []creativeROI
	for _, r := range rois {
		if r.Spend > 0 && r.ROI > threshold {
			q = append(q, r)
		}
	}
	sort.SliceStable(q, func(i, j int) bool {
		if q[i].ROI != q[j].ROI {
			return q[i].ROI > q[j].ROI
		}
		return q[i].CreativeID < q[j].CreativeID
	})
	if len(q) > n {
		q = q[:n]
	}
	return q
}

func roiSnapshot(rois []creativeROI) datatypes.JSONMap {
	snap := datatypes.JSONMap{}
	for _, r := range rois {
		snap[r.CreativeID] = map[string]any{
			"revenue": r.Revenue,
			"spend":   r.Spend,
			"roi":     math.Round(r.ROI*1e6) / 1e6,
		}
	}
	return snap
}

func (s *Scheduler) currentAllocations(ctx context.Context, campaignID string) ([]domain.GeoAllocation, error) {
	if s.cfg.Allocations == nil {
		return nil, nil
	}
	allocs, err := s.cfg.Allocations.ListAllocations(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("load allocations: %w", err)
	}
	return allocs, nil
}

func geoBudgets(allocs []domain.GeoAllocation) map[string]float64 {
	out := make(map[string]float64, len(allocs))
	for _, a := range allocs {
		out[a.Geo] = a.Amount
	}
	return out
}

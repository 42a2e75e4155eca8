package reinvest

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"adBudgetEngine/domain"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 13, 30, 0, 0, time.UTC)

type fixture struct {
	clock     *clockwork.FakeClock
	campaigns *memCampaigns
	cycles    *memCycles
	ledger    *fakeLedger
	allocs    *memAllocations
	creatives *fakeCreatives
	platform  *fakePlatform
	alerter   *fakeAlerter
	opLog     *memOpLog
	decisions *memDecisions
	lease     *LocalLease
	sched     *Scheduler
}

func liveCampaign(id string) domain.Campaign {
	return domain.Campaign{
		ID:                 id,
		Status:             domain.CampaignActive,
		CycleState:         domain.CycleMonitoring,
		DailyBudget:        100,
		PlatformCampaignID: "pc-" + id,
	}
}

func newFixture(t *testing.T, overrides stubOverrides, campaigns ...domain.Campaign) *fixture {
	t.Helper()
	if len(campaigns) == 0 {
		campaigns = []domain.Campaign{liveCampaign("c1")}
	}

	clock := clockwork.NewFakeClockAt(testNow)
	f := &fixture{
		clock:     clock,
		campaigns: newMemCampaigns(campaigns...),
		cycles:    newMemCycles(),
		ledger:    &fakeLedger{revenue: map[string]float64{}, spend: map[string]float64{}},
		allocs:    &memAllocations{rows: map[string][]domain.GeoAllocation{}},
		creatives: &fakeCreatives{status: map[string]domain.CreativeStatus{}},
		platform:  &fakePlatform{},
		alerter:   &fakeAlerter{},
		opLog:     &memOpLog{},
		decisions: &memDecisions{},
		lease:     NewLocalLease(clock),
	}
	for _, c := range campaigns {
		f.allocs.rows[c.ID] = []domain.GeoAllocation{
			{CampaignID: c.ID, Geo: "ES", Fraction: 0.5, Amount: 50},
			{CampaignID: c.ID, Geo: "FR", Fraction: 0.5, Amount: 50},
		}
	}

	cfg := Config{
		Campaigns:   f.campaigns,
		Cycles:      f.cycles,
		Ledger:      f.ledger,
		Allocations: f.allocs,
		Creatives:   f.creatives,
		Platform:    f.platform,
		Lease:       f.lease,
		Alerter:     f.alerter,
		Decisions:   f.decisions,
		OpLog:       f.opLog,
		Policy:      DefaultPolicy(),
		Clock:       clock,
	}
	if overrides != nil {
		cfg.Overrides = overrides
	}

	sched, err := NewScheduler(cfg)
	require.NoError(t, err)
	f.sched = sched
	return f
}

func (f *fixture) perform(id string, revenue, spend float64) {
	f.ledger.revenue[id] = revenue
	f.ledger.spend[id] = spend
}

func TestWindow(t *testing.T) {
	w := WindowAt(testNow, 6*time.Hour)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), w.Start)

	ev := EvaluatedWindow(testNow, 6*time.Hour)
	assert.Equal(t, time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC), ev.Start)
	assert.Equal(t, w.Start, ev.End())
	assert.Equal(t, "2026-03-01T06:00:00Z/6h0m0s", ev.ID())

	// every instant of a window maps to the same evaluated window
	assert.Equal(t, ev.ID(), EvaluatedWindow(w.Start, 6*time.Hour).ID())
	assert.Equal(t, ev.ID(), EvaluatedWindow(w.End().Add(-time.Nanosecond), 6*time.Hour).ID())
	assert.NotEqual(t, ev.ID(), EvaluatedWindow(w.End(), 6*time.Hour).ID())
}

func TestEvaluate_ReinvestsTopPerformerOnce(t *testing.T) {
	f := newFixture(t, nil)
	f.perform("X", 160, 100)
	f.perform("Y", 100, 100)

	f.platform.onCall = func() {
		c := f.campaigns.get("c1")
		assert.Equal(t, domain.CampaignReinvesting, c.Status)
		assert.Equal(t, domain.CycleEvaluating, c.CycleState)
	}

	ctx := context.Background()
	res, err := f.sched.Evaluate(ctx, "c1", domain.TriggerSchedule)
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Equal(t, domain.CycleStatusReinvested, res.Cycle.Status)
	assert.Equal(t, []string{"X"}, []string(res.Cycle.SelectedCreativeIDs))
	assert.Equal(t, 50.0, res.Cycle.BudgetIncrement)
	assert.Equal(t, map[string]float64{"X": 50}, res.Boosts)
	assert.Equal(t, 1, res.Cycle.Attempts)
	require.NotNil(t, res.Cycle.CompletedAt)

	require.Equal(t, 1, f.platform.callCount())
	upd := f.platform.calls[0]
	assert.Equal(t, 150.0, upd.DailyBudget)
	assert.Equal(t, map[string]float64{"ES": 75, "FR": 75}, upd.GeoBudgets)
	assert.Equal(t, res.Cycle.ID, upd.IdempotencyID)

	c := f.campaigns.get("c1")
	assert.Equal(t, 150.0, c.DailyBudget)
	assert.Equal(t, domain.CampaignActive, c.Status)
	assert.Equal(t, domain.CycleMonitoring, c.CycleState)
	assert.Equal(t, domain.CreativeBoosted, f.creatives.status["X"])
	assert.NotContains(t, f.creatives.status, "Y")

	var cents int64
	for _, a := range f.allocs.rows["c1"] {
		cents += int64(math.Round(a.Amount * 100))
	}
	assert.Equal(t, int64(15000), cents)

	assert.Equal(t, time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC), f.ledger.lastQ.From)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), f.ledger.lastQ.To)

	// same window again: no second spend
	again, err := f.sched.Evaluate(ctx, "c1", domain.TriggerManual)
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	assert.Equal(t, res.Cycle.ID, again.Cycle.ID)
	assert.Equal(t, 1, f.platform.callCount())
	assert.Equal(t, 1, f.cycles.count())
	assert.Equal(t, 150.0, f.campaigns.get("c1").DailyBudget)

	require.Len(t, f.decisions.recs, 1)
	assert.Equal(t, domain.DecisionReinvestment, f.decisions.recs[0].Kind)
}

func TestEvaluate_NextWindowRunsAgain(t *testing.T) {
	f := newFixture(t, nil)
	f.perform("X", 160, 100)

	_, err := f.sched.Evaluate(context.Background(), "c1", domain.TriggerSchedule)
	require.NoError(t, err)

	f.clock.Advance(6 * time.Hour)
	res, err := f.sched.Evaluate(context.Background(), "c1", domain.TriggerSchedule)
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Equal(t, 2, f.platform.callCount())
	assert.Equal(t, 2, f.cycles.count())
	assert.Equal(t, 200.0, f.campaigns.get("c1").DailyBudget)
}

func TestEvaluate_SkipsAtOrBelowThreshold(t *testing.T) {
	f := newFixture(t, nil)
	f.perform("X", 150, 100)
	f.perform("Y", 500, 0)

	res, err := f.sched.Evaluate(context.Background(), "c1", domain.TriggerSchedule)
	require.NoError(t, err)
	assert.Equal(t, domain.CycleStatusSkipped, res.Cycle.Status)
	assert.Empty(t, res.Cycle.SelectedCreativeIDs)
	assert.Equal(t, 0, f.platform.callCount())
	assert.Contains(t, res.Cycle.ROISnapshot, "X")

	again, err := f.sched.Evaluate(context.Background(), "c1", domain.TriggerSchedule)
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	assert.Equal(t, 1, f.cycles.count())
}

func TestEvaluate_TopNByROI(t *testing.T) {
	f := newFixture(t, nil)
	f.perform("A", 200, 100)
	f.perform("B", 300, 100)
	f.perform("C", 180, 100)
	f.perform("D", 100, 100)

	res, err := f.sched.Evaluate(context.Background(), "c1", domain.TriggerSchedule)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, []string(res.Cycle.SelectedCreativeIDs))
	assert.Equal(t, 100.0, res.Cycle.BudgetIncrement)
}

func TestEvaluate_Overrides(t *testing.T) {
	f := newFixture(t, stubOverrides{"c1": {CampaignID: "c1", TopN: 1, IncrementAmount: 20, ROIThreshold: 1.1}})
	f.perform("A", 120, 100)
	f.perform("B", 130, 100)

	res, err := f.sched.Evaluate(context.Background(), "c1", domain.TriggerSchedule)
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, []string(res.Cycle.SelectedCreativeIDs))
	assert.Equal(t, 20.0, res.Cycle.BudgetIncrement)
}

func TestEvaluate_FailedCycleRetriedSameWindow(t *testing.T) {
	f := newFixture(t, nil)
	f.perform("X", 160, 100)
	f.platform.errs = []error{&domain.ExternalCallFailure{Operation: "update_budget", Attempts: 4, Err: domain.ErrRateLimited}}

	first, err := f.sched.Evaluate(context.Background(), "c1", domain.TriggerSchedule)
	require.NoError(t, err)
	assert.Equal(t, domain.CycleStatusFailed, first.Cycle.Status)
	assert.Equal(t, 4, first.Cycle.Attempts)
	assert.Contains(t, first.Cycle.FailureReason, "rate limited")

	c := f.campaigns.get("c1")
	assert.Equal(t, 1, c.ConsecutiveFailures)
	assert.Equal(t, 100.0, c.DailyBudget)
	assert.Equal(t, domain.CampaignActive, c.Status)
	assert.Equal(t, domain.CycleMonitoring, c.CycleState)
	assert.Contains(t, f.opLog.kinds(), domain.LogCycleFailed)
	assert.Empty(t, f.creatives.status)

	second, err := f.sched.Evaluate(context.Background(), "c1", domain.TriggerSchedule)
	require.NoError(t, err)
	assert.False(t, second.Duplicate)
	assert.Equal(t, domain.CycleStatusReinvested, second.Cycle.Status)
	assert.Equal(t, first.Cycle.ID, second.Cycle.ID)
	assert.Equal(t, 5, second.Cycle.Attempts)
	assert.Empty(t, second.Cycle.FailureReason)

	require.Equal(t, 2, f.platform.callCount())
	assert.Equal(t, f.platform.calls[0].IdempotencyID, f.platform.calls[1].IdempotencyID)
	assert.Equal(t, 0, f.campaigns.get("c1").ConsecutiveFailures)
	assert.Equal(t, 1, f.cycles.count())
}

func TestEvaluate_EscalatesAfterThreeFailures(t *testing.T) {
	f := newFixture(t, nil)
	f.perform("X", 160, 100)
	f.platform.always = &domain.ExternalCallFailure{Operation: "update_budget", Attempts: 4, Err: errors.New("503")}

	for i := 1; i <= 3; i++ {
		res, err := f.sched.Evaluate(context.Background(), "c1", domain.TriggerSchedule)
		require.NoError(t, err)
		assert.Equal(t, domain.CycleStatusFailed, res.Cycle.Status)
		assert.Equal(t, i, f.campaigns.get("c1").ConsecutiveFailures)
	}

	assert.Len(t, f.alerter.subjects, 1)
	assert.Contains(t, f.alerter.subjects[0], "c1")

	escalations := 0
	for _, k := range f.opLog.kinds() {
		if k == domain.LogCycleEscalated {
			escalations++
		}
	}
	assert.Equal(t, 1, escalations)
	assert.True(t, f.sched.Escalated(f.campaigns.get("c1")))
}

func TestEvaluate_LedgerErrorDoesNotCountTowardsEscalation(t *testing.T) {
	f := newFixture(t, nil)
	f.sched.cfg.Ledger = failingLedger{}

	res, err := f.sched.Evaluate(context.Background(), "c1", domain.TriggerSchedule)
	require.NoError(t, err)
	assert.Equal(t, domain.CycleStatusFailed, res.Cycle.Status)
	assert.Equal(t, 0, f.campaigns.get("c1").ConsecutiveFailures)
	assert.Equal(t, 0, f.platform.callCount())
}

type failingLedger struct{}

func (failingLedger) AggregateBy(ctx context.Context, q domain.LedgerQuery, group domain.LedgerGroup) ([]domain.AttributionAggregate, error) {
	return nil, errors.New("ledger timeout")
}

func (failingLedger) SpendBy(ctx context.Context, q domain.LedgerQuery, group domain.LedgerGroup) ([]domain.SpendAggregate, error) {
	return nil, errors.New("ledger timeout")
}

func TestEvaluate_CancelledBeforePlatformCall(t *testing.T) {
	f := newFixture(t, nil)
	f.perform("X", 160, 100)
	f.ledger.onSpend = func() {
		assert.True(t, f.sched.Cancel("c1"))
	}

	res, err := f.sched.Evaluate(context.Background(), "c1", domain.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, domain.CycleStatusCancelled, res.Cycle.Status)
	assert.Equal(t, 0, f.platform.callCount())

	c := f.campaigns.get("c1")
	assert.Equal(t, domain.CycleMonitoring, c.CycleState)
	assert.Equal(t, domain.CampaignActive, c.Status)
	assert.Equal(t, 100.0, c.DailyBudget)
	assert.Equal(t, 0, c.ConsecutiveFailures)
	assert.Contains(t, f.opLog.kinds(), domain.LogCycleCancelled)

	assert.False(t, f.sched.Cancel("c1"))
}

func TestEvaluate_ShutdownMidCycleKeepsWindowOpen(t *testing.T) {
	f := newFixture(t, nil)
	f.perform("X", 160, 100)

	ctx, stop := context.WithCancel(context.Background())
	f.ledger.onSpend = stop

	first, err := f.sched.Evaluate(ctx, "c1", domain.TriggerSchedule)
	require.NoError(t, err)
	assert.Equal(t, domain.CycleStatusFailed, first.Cycle.Status)
	assert.Contains(t, first.Cycle.FailureReason, "interrupted")
	assert.Equal(t, 0, f.platform.callCount())
	assert.Equal(t, 0, f.campaigns.get("c1").ConsecutiveFailures)
	assert.NotContains(t, f.opLog.kinds(), domain.LogCycleCancelled)

	// restart in the same window
	f.ledger.onSpend = nil
	second, err := f.sched.Evaluate(context.Background(), "c1", domain.TriggerSchedule)
	require.NoError(t, err)
	assert.False(t, second.Duplicate)
	assert.Equal(t, first.Cycle.ID, second.Cycle.ID)
	assert.Equal(t, domain.CycleStatusReinvested, second.Cycle.Status)
	assert.Equal(t, 1, f.platform.callCount())
	assert.Equal(t, 150.0, f.campaigns.get("c1").DailyBudget)
}

func TestEvaluate_ShutdownDuringPlatformCallIsNotCounted(t *testing.T) {
	f := newFixture(t, nil)
	f.perform("X", 160, 100)

	ctx, stop := context.WithCancel(context.Background())
	f.platform.onCall = stop
	f.platform.errs = []error{&domain.ExternalCallFailure{Operation: "update_budget", Attempts: 2, Err: context.Canceled}}

	res, err := f.sched.Evaluate(ctx, "c1", domain.TriggerSchedule)
	require.NoError(t, err)
	assert.Equal(t, domain.CycleStatusFailed, res.Cycle.Status)
	assert.Equal(t, 0, f.campaigns.get("c1").ConsecutiveFailures)
	assert.False(t, f.sched.Escalated(f.campaigns.get("c1")))
	assert.Empty(t, f.alerter.subjects)
}

func TestEvaluate_DeadlineBeforePlatformCallIsRetried(t *testing.T) {
	f := newFixture(t, nil)
	f.perform("X", 160, 100)

	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)
	f.ledger.onSpend = func() { cancel(context.DeadlineExceeded) }

	res, err := f.sched.Evaluate(ctx, "c1", domain.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, domain.CycleStatusFailed, res.Cycle.Status)
	assert.False(t, res.Cycle.Status.Final())
}

func TestEvaluate_LeaseHeld(t *testing.T) {
	f := newFixture(t, nil)
	_, ok, err := f.lease.Acquire(context.Background(), leaseKey("c1"), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.sched.Evaluate(context.Background(), "c1", domain.TriggerSchedule)
	assert.ErrorIs(t, err, ErrCycleInProgress)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Equal(t, 0, f.cycles.count())
}

func TestEvaluate_RejectsNonRunningCampaign(t *testing.T) {
	draft := liveCampaign("c1")
	draft.Status = domain.CampaignPaused
	f := newFixture(t, nil, draft)

	_, err := f.sched.Evaluate(context.Background(), "c1", domain.TriggerSchedule)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = f.sched.Evaluate(context.Background(), "missing", domain.TriggerSchedule)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEvaluate_ContextAlreadyCancelled(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.sched.Evaluate(ctx, "c1", domain.TriggerSchedule)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{}
	assert.Error(t, cfg.Validate())

	cfg = Config{Campaigns: newMemCampaigns(), Cycles: newMemCycles(), Ledger: &fakeLedger{}, Platform: &fakePlatform{}}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultPolicy(), cfg.Policy)
	assert.NotNil(t, cfg.Lease)
	assert.NotNil(t, cfg.Clock)

	cfg.PlatformBudget = 2 * time.Minute
	assert.Error(t, cfg.Validate())

	cfg.Policy.LeaseTTL = 3 * time.Minute
	assert.NoError(t, cfg.Validate())
}

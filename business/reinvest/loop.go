package reinvest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"adBudgetEngine/domain"
	"adBudgetEngine/pkg/logger"
	"adBudgetEngine/pkg/metrics"

	"github.com/alitto/pond/v2"
)

// GeoRecomputer re-plans a campaign's geo allocation from fresh metrics.
type GeoRecomputer interface {
	Recompute(ctx context.Context, campaignID string) ([]domain.GeoAllocation, error)
}

type LoopConfig struct {
	Tick    time.Duration
	Workers int

	// optional periodic geo re-plan
	Geo        GeoRecomputer
	GeoCadence time.Duration
}

func (c *LoopConfig) Validate() error {
	if c.Tick <= 0 {
		return errors.New("reinvest: tick must be positive")
	}
	if c.Workers <= 0 {
		c.Workers = 8
	}
	if c.Geo != nil && c.GeoCadence <= 0 {
		c.GeoCadence = 6 * time.Hour
	}
	return nil
}

// TickOutcome is the per-campaign result of one tick.
type TickOutcome struct {
	CampaignID string
	Status     domain.CycleStatus
	Duplicate  bool
	Skipped    string
	Err        error
}

// Loop drives the scheduler from a clock. Campaigns are evaluated
// concurrently; one campaign's error never stops the others.
type Loop struct {
	sched *Scheduler
	cfg   LoopConfig
	pool  pond.ResultPool[TickOutcome]

	mu       sync.Mutex
	geoRunAt map[string]time.Time
}

func NewLoop(sched *Scheduler, cfg LoopConfig) (*Loop, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Loop{
		sched:    sched,
		cfg:      cfg,
		pool:     pond.NewResultPool[TickOutcome](cfg.Workers),
		geoRunAt: map[string]time.Time{},
	}, nil
}

// Run ticks until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	clock := l.sched.cfg.Clock
	ticker := clock.NewTicker(l.cfg.Tick)
	defer ticker.Stop()

	logger.Info("reinvest_loop_started", "tick", l.cfg.Tick.String(), "workers", l.cfg.Workers)

	for {
		select {
		case <-ctx.Done():
			logger.Info("reinvest_loop_stopped")
			return nil
		case <-ticker.Chan():
			l.Tick(ctx)
		}
	}
}

func (l *Loop) Stop() {
	l.pool.StopAndWait()
}

// Tick evaluates every running campaign once.
func (l *Loop) Tick(ctx context.Context) []TickOutcome {
	start := l.sched.cfg.Clock.Now()
	defer func() {
		metrics.SchedulerTickDuration.Observe(l.sched.cfg.Clock.Since(start).Seconds())
	}()

	campaigns, err := l.sched.cfg.Campaigns.ListRunning(ctx)
	if err != nil {
		logger.Error("reinvest_list_campaigns_failed", "error", err)
		return nil
	}

	group := l.pool.NewGroupContext(ctx)
	for _, c := range campaigns {
		group.SubmitErr(func() (TickOutcome, error) {
			return l.evaluateOne(ctx, c), nil
		})
	}

	results, err := group.Wait()
	if err != nil {
		logger.Warn("reinvest_tick_interrupted", "error", err)
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	logger.Debug("reinvest_tick_done", "campaigns", len(campaigns), "errors", failed)
	return results
}

func (l *Loop) evaluateOne(ctx context.Context, c domain.Campaign) (out TickOutcome) {
	out.CampaignID = c.ID
	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("panic: %v", r)
			logger.Error("reinvest_campaign_panic", "campaign_id", c.ID, "panic", r)
		}
	}()

	l.maybeRecomputeGeo(ctx, c.ID)

	if l.sched.Escalated(c) {
		out.Skipped = "escalated"
		return out
	}

	res, err := l.sched.Evaluate(ctx, c.ID, domain.TriggerSchedule)
	if err != nil {
		if errors.Is(err, ErrCycleInProgress) {
			out.Skipped = "in_progress"
			return out
		}
		out.Err = err
		logger.Error("reinvest_evaluate_failed", "campaign_id", c.ID, "error", err)
		return out
	}
	out.Status = res.Cycle.Status
	out.Duplicate = res.Duplicate
	return out
}

func (l *Loop) maybeRecomputeGeo(ctx context.Context, campaignID string) {
	if l.cfg.Geo == nil {
		return
	}
	now := l.sched.cfg.Clock.Now()

	l.mu.Lock()
	last, ok := l.geoRunAt[campaignID]
	due := !ok || now.Sub(last) >= l.cfg.GeoCadence
	if due {
		l.geoRunAt[campaignID] = now
	}
	l.mu.Unlock()

	if !due {
		return
	}
	if _, err := l.cfg.Geo.Recompute(ctx, campaignID); err != nil {
		logger.Warn("geo_recompute_failed", "campaign_id", campaignID, "error", err)
	}
}

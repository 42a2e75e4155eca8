package reinvest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"adBudgetEngine/domain"

	"github.com/jonboulle/clockwork"
)

// ---- Repository interfaces ----

type CampaignRepository interface {
	GetCampaign(ctx context.Context, id string) (domain.Campaign, bool, error)
	ListRunning(ctx context.Context) ([]domain.Campaign, error)
	SetCycleState(ctx context.Context, id string, state domain.CycleState) error
	// TransitionStatus is a compare-and-set on the campaign status.
	TransitionStatus(ctx context.Context, id string, from, to domain.CampaignStatus) (bool, error)
	SetConsecutiveFailures(ctx context.Context, id string, n int) error
	SetDailyBudget(ctx context.Context, id string, amount float64) error
}

type CycleRepository interface {
	FindCycle(ctx context.Context, campaignID, windowID string) (domain.ReinvestmentCycle, bool, error)
	// CreateCycle returns false when (campaign_id, window_id) already exists.
	CreateCycle(ctx context.Context, cycle domain.ReinvestmentCycle) (bool, error)
	UpdateCycle(ctx context.Context, cycle domain.ReinvestmentCycle) error
	ListCycles(ctx context.Context, campaignID string, limit int) ([]domain.ReinvestmentCycle, error)
}

// Ledger is the attribution ledger's read side.
type Ledger interface {
	AggregateBy(ctx context.Context, q domain.LedgerQuery, group domain.LedgerGroup) ([]domain.AttributionAggregate, error)
	SpendBy(ctx context.Context, q domain.LedgerQuery, group domain.LedgerGroup) ([]domain.SpendAggregate, error)
}

type AllocationRepository interface {
	ListAllocations(ctx context.Context, campaignID string) ([]domain.GeoAllocation, error)
	ReplaceAllocations(ctx context.Context, campaignID string, allocations []domain.GeoAllocation) error
}

type CreativeRepository interface {
	SetCreativeStatus(ctx context.Context, creativeID string, status domain.CreativeStatus) error
}

// BudgetUpdater is the budget half of the ad platform port.
type BudgetUpdater interface {
	UpdateBudget(ctx context.Context, platformCampaignID string, upd domain.BudgetUpdate) error
}

type Alerter interface {
	AlertOperator(ctx context.Context, subject, body string) error
}

type ConfigRepository interface {
	GetConfig(ctx context.Context, campaignID string) (domain.OptimizerConfig, bool, error)
}

type DecisionRepository interface {
	SaveDecision(ctx context.Context, rec domain.DecisionRecord) error
}

type OperatorLogRepository interface {
	Append(ctx context.Context, entry domain.OperatorLogEntry) error
}

// ---- Policy / Config ----

type Policy struct {
	ROIThreshold        float64
	TopN                int
	Increment           float64
	Window              time.Duration
	MaxConsecutiveFails int
	LeaseTTL            time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		ROIThreshold:        1.5,
		TopN:                2,
		Increment:           50,
		Window:              6 * time.Hour,
		MaxConsecutiveFails: 3,
		LeaseTTL:            2 * time.Minute,
	}
}

type Config struct {
	Campaigns   CampaignRepository
	Cycles      CycleRepository
	Ledger      Ledger
	Allocations AllocationRepository
	Creatives   CreativeRepository
	Platform    BudgetUpdater
	Lease       Lease
	Alerter     Alerter
	Overrides   ConfigRepository
	Decisions   DecisionRepository
	OpLog       OperatorLogRepository

	// PlatformBudget is the longest a single UpdateBudget call may take,
	// retries included. The lease must outlive it.
	PlatformBudget time.Duration

	Policy Policy
	Clock  clockwork.Clock
}

// leaseMargin covers ledger reads and bookkeeping around the platform call.
const leaseMargin = 30 * time.Second

func (c *Config) Validate() error {
	if c.Campaigns == nil {
		return errors.New("reinvest: campaign repository is required")
	}
	if c.Cycles == nil {
		return errors.New("reinvest: cycle repository is required")
	}
	if c.Ledger == nil {
		return errors.New("reinvest: ledger is required")
	}
	if c.Platform == nil {
		return errors.New("reinvest: ad platform is required")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Lease == nil {
		c.Lease = NewLocalLease(c.Clock)
	}

	def := DefaultPolicy()
	if c.Policy.ROIThreshold <= 0 {
		c.Policy.ROIThreshold = def.ROIThreshold
	}
	if c.Policy.TopN <= 0 {
		c.Policy.TopN = def.TopN
	}
	if c.Policy.Increment <= 0 {
		c.Policy.Increment = def.Increment
	}
	if c.Policy.Window <= 0 {
		c.Policy.Window = def.Window
	}
	if c.Policy.MaxConsecutiveFails <= 0 {
		c.Policy.MaxConsecutiveFails = def.MaxConsecutiveFails
	}
	if c.Policy.LeaseTTL <= 0 {
		c.Policy.LeaseTTL = def.LeaseTTL
	}
	if c.PlatformBudget > 0 && c.Policy.LeaseTTL < c.PlatformBudget+leaseMargin {
		return fmt.Errorf("reinvest: lease ttl %s must exceed the platform retry budget %s by %s",
			c.Policy.LeaseTTL, c.PlatformBudget, leaseMargin)
	}
	return nil
}

var ErrCycleInProgress = fmt.Errorf("reinvestment cycle already in progress: %w", domain.ErrInvalidState)

// errCycleCancelled is the cancel cause set by Cancel. Any other end of the
// cycle context leaves the window open for the next trigger.
var errCycleCancelled = errors.New("reinvestment cycle cancelled by operator")

// ---- Scheduler ----

type Scheduler struct {
	cfg Config

	mu       sync.Mutex
	inFlight map[string]context.CancelCauseFunc
}

func NewScheduler(cfg Config) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scheduler{cfg: cfg, inFlight: map[string]context.CancelCauseFunc{}}, nil
}

// Cancel aborts the campaign's in-flight cycle, if any. A cycle cancelled
// before its platform call ends as cancelled and the campaign returns to
// monitoring.
func (s *Scheduler) Cancel(campaignID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cancel, ok := s.inFlight[campaignID]
	if ok {
		cancel(errCycleCancelled)
	}
	return ok
}

func (s *Scheduler) track(campaignID string, cancel context.CancelCauseFunc) {
	s.mu.Lock()
	s.inFlight[campaignID] = cancel
	s.mu.Unlock()
}

func (s *Scheduler) untrack(campaignID string) {
	s.mu.Lock()
	if cancel, ok := s.inFlight[campaignID]; ok {
		cancel(nil)
		delete(s.inFlight, campaignID)
	}
	s.mu.Unlock()
}

// policyFor overlays the campaign's stored overrides on the process policy.
func (s *Scheduler) policyFor(ctx context.Context, campaignID string) Policy {
	p := s.cfg.Policy
	if s.cfg.Overrides == nil {
		return p
	}
	row, ok, err := s.cfg.Overrides.GetConfig(ctx, campaignID)
	if err != nil || !ok {
		return p
	}
	if row.ROIThreshold > 0 {
		p.ROIThreshold = row.ROIThreshold
	}
	if row.TopN > 0 {
		p.TopN = row.TopN
	}
	if row.IncrementAmount > 0 {
		p.Increment = row.IncrementAmount
	}
	if row.WindowHours > 0 {
		p.Window = time.Duration(row.WindowHours) * time.Hour
	}
	return p
}

func (s *Scheduler) ListCycles(ctx context.Context, campaignID string, limit int) ([]domain.ReinvestmentCycle, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	if limit <= 0 {
		limit = 50
	}
	return s.cfg.Cycles.ListCycles(ctx, campaignID, limit)
}

// Escalated reports whether a campaign has hit the consecutive failure
// limit and now waits for an operator.
func (s *Scheduler) Escalated(c domain.Campaign) bool {
	return c.ConsecutiveFailures >= s.cfg.Policy.MaxConsecutiveFails
}

package bandit

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"adBudgetEngine/domain"
	"adBudgetEngine/pkg/logger"

	"github.com/jonboulle/clockwork"
	"gorm.io/datatypes"
)

// ---- Repository interfaces ----

type CreativeRepository interface {
	ListCreatives(ctx context.Context, campaignID string) ([]domain.Creative, error)
}

type AllocationRepository interface {
	ListAllocations(ctx context.Context, campaignID string) ([]domain.GeoAllocation, error)
}

type ArmRepository interface {
	ListArms(ctx context.Context, campaignID string) ([]domain.Arm, error)
	UpsertArms(ctx context.Context, arms []domain.Arm) error
}

// StatsSource is the attribution ledger's grouped aggregate query.
type StatsSource interface {
	AggregateBy(ctx context.Context, q domain.LedgerQuery, group domain.LedgerGroup) ([]domain.AttributionAggregate, error)
}

type DecisionRepository interface {
	SaveDecision(ctx context.Context, rec domain.DecisionRecord) error
}

// ---- Usecase / Service ----

type Service struct {
	creatives   CreativeRepository
	allocations AllocationRepository
	armRepo     ArmRepository
	stats       StatsSource
	cfgRepo     ConfigRepository
	decisions   DecisionRepository
	eligChecker EligibilityChecker
	defaultCfg  Config
	clock       clockwork.Clock

	src rand.Source
}

func NewService(
	creatives CreativeRepository,
	allocations AllocationRepository,
	armRepo ArmRepository,
	stats StatsSource,
	cfgRepo ConfigRepository,
	decisions DecisionRepository,
	eligChecker EligibilityChecker,
	defaultCfg Config,
	clock clockwork.Clock,
) *Service {
	if eligChecker == nil {
		eligChecker = StatusEligibilityChecker{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		creatives:   creatives,
		allocations: allocations,
		armRepo:     armRepo,
		stats:       stats,
		cfgRepo:     cfgRepo,
		decisions:   decisions,
		eligChecker: eligChecker,
		defaultCfg:  defaultCfg,
		clock:       clock,
	}
}

// SetRandSource makes posterior sampling reproducible. Without it the
// global generator is used.
func (s *Service) SetRandSource(src rand.Source) {
	s.src = &lockedSource{src: src}
}

type lockedSource struct {
	mu  sync.Mutex
	src rand.Source
}

func (l *lockedSource) Uint64() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.src.Uint64()
}

func (s *Service) jitter() float64 {
	if s.src == nil {
		return rand.Float64() * 1e-6
	}
	return rand.New(s.src).Float64() * 1e-6
}

// SelectArms scores every (creative, geo) arm of the campaign and returns
// the top k eligible arms with weights summing to 1. All arms are persisted
// with their refreshed counts; arms outside the top k keep weight 0.
func (s *Service) SelectArms(ctx context.Context, campaignID string, k int) ([]domain.Arm, error) {
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
	if len(cands) == 0 {
		return []domain.Arm{}, nil
	}

	policy := s.scoreCandidates(cands, cfg)
	selected := pickTop(cands, k)

	now := s.clock.Now()
	total := 0.0
	for _, c := range selected {
		total += c.arm.Score
	}

	out := make([]domain.Arm, 0, len(selected))
	for _, c := range selected {
		c.arm.Weight = c.arm.Score / total
		c.arm.SelectionCount++
		c.arm.LastSelectedAt = &now
		c.selected = true
		out = append(out, c.arm)

		BanditArmSelectionsTotal.WithLabelValues(c.arm.Policy).Inc()
		if c.cold {
			BanditColdArmsTotal.Inc()
		}
	}

	all := make([]domain.Arm, 0, len(cands))
	for _, c := range cands {
		if !c.selected {
			c.arm.Weight = 0
		}
		all = append(all, c.arm)
	}
	if err := s.armRepo.UpsertArms(ctx, all); err != nil {
		return nil, fmt.Errorf("save arms: %w", err)
	}

	tid := TraceIDFromContext(ctx)
	logger.Debug("bandit_select_arms",
		"trace_id", tid,
		"campaign_id", campaignID,
		"policy", policy,
		"candidates", len(cands),
		"selected", len(out),
	)

	s.recordSelection(ctx, campaignID, policy, out)

	return out, nil
}

func (s *Service) recordSelection(ctx context.Context, campaignID, policy string, arms []domain.Arm) {
	if s.decisions == nil {
		return
	}

	picked := make([]any, 0, len(arms))
	for _, a := range arms {
		picked = append(picked, map[string]any{
			"creative_id": a.CreativeID,
			"geo":         a.Geo,
			"pulls":       a.PullCount,
			"successes":   a.Successes,
			"score":       a.Score,
			"weight":      a.Weight,
		})
	}

	rec := domain.DecisionRecord{
		CampaignID: campaignID,
		Kind:       domain.DecisionArmSelection,
		Context: datatypes.JSONMap{
			"policy": policy,
			"arms":   picked,
		},
	}
	if err := s.decisions.SaveDecision(ctx, rec); err != nil {
		logger.Warn("save_decision_failed", "campaign_id", campaignID, "error", err)
	}
}

// scoreCandidates fills Score/Policy on every candidate and returns the
// campaign-level policy used for warm arms.
func (s *Service) scoreCandidates(cands []*candidate, cfg Config) string {
	var totalPulls int64
	matured := false
	for _, c := range cands {
		if !c.eligible {
			continue
		}
		totalPulls += c.arm.PullCount
		if c.arm.PullCount >= int64(cfg.MinPulls) {
			matured = true
		}
	}

	policy := PolicyUCB1
	if matured {
		policy = PolicyThompson
	}

	maxWarm := 0.0
	for _, c := range cands {
		if !c.eligible {
			c.arm.Score = 0
			c.arm.Policy = ""
			continue
		}
		if c.arm.PullCount == 0 {
			c.cold = true
			continue
		}

		switch policy {
		case PolicyThompson:
			c.mean = float64(c.arm.Successes) / float64(c.arm.PullCount)
			c.arm.Score = thompsonScore(c.arm.Successes, c.arm.Failures, s.src)
		default:
			c.mean, c.bonus = ucb1Score(c.arm.Successes, c.arm.PullCount, totalPulls)
			c.arm.Score = c.mean + c.bonus
		}
		c.arm.Policy = policy
		if c.arm.Score > maxWarm {
			maxWarm = c.arm.Score
		}
	}

	// never-pulled arms outrank every warm arm
	coldBase := maxWarm
	if coldBase < 1 {
		coldBase = 1
	}
	for _, c := range cands {
		if c.eligible && c.cold {
			c.arm.Score = coldBase + cfg.ColdStartBonus + s.jitter()
			c.arm.Policy = PolicyColdStart
		}
	}

	return policy
}

func pickTop(cands []*candidate, k int) []*candidate {
	eligible := make([]*candidate, 0, len(cands))
	for _, c := range cands {
		if c.eligible && c.arm.Score > 0 {
			eligible = append(eligible, c)
		}
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].arm.Score != eligible[j].arm.Score {
			return eligible[i].arm.Score > eligible[j].arm.Score
		}
		return eligible[i].arm.Key() < eligible[j].arm.Key()
	})

	if k > len(eligible) {
		k = len(eligible)
	}
	return eligible[:k]
}

var errNoGeos = errors.New("campaign has no geo allocation")

func windowStart(now time.Time, cfg Config) time.Time {
	hours := cfg.WindowHours
	if hours <= 0 {
		hours = defaultWindowHours
	}
	return now.Add(-time.Duration(hours) * time.Hour)
}

package geo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"adBudgetEngine/domain"
	"adBudgetEngine/pkg/logger"
	"adBudgetEngine/pkg/metrics"

	"github.com/jonboulle/clockwork"
	"gorm.io/datatypes"
)

// ---- Repository interfaces ----

type CampaignRepository interface {
	GetCampaign(ctx context.Context, id string) (domain.Campaign, bool, error)
}

type ConstraintRepository interface {
	ListConstraints(ctx context.Context, campaignID string) ([]domain.GeoConstraint, error)
	ReplaceConstraints(ctx context.Context, campaignID string, constraints []domain.GeoConstraint) error
}

type AllocationRepository interface {
	ListAllocations(ctx context.Context, campaignID string) ([]domain.GeoAllocation, error)
	// ReplaceAllocations swaps the whole allocation set in one transaction.
	ReplaceAllocations(ctx context.Context, campaignID string, allocations []domain.GeoAllocation) error
}

// MetricsSource provides rolling per-geo performance, usually the
// attribution ledger.
type MetricsSource interface {
	GeoMetrics(ctx context.Context, campaignID string, from, to time.Time) ([]domain.GeoMetrics, error)
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

type Settings struct {
	Window     time.Duration
	StaleAfter time.Duration
	Weights    Weights
	Clock      clockwork.Clock
}

func (s Settings) Validate() error {
	if s.Window <= 0 {
		return errors.New("geo: window must be positive")
	}
	if s.Clock == nil {
		return errors.New("geo: clock is required")
	}
	return nil
}

type Service struct {
	campaigns   CampaignRepository
	constraints ConstraintRepository
	allocations AllocationRepository
	source      MetricsSource
	cfgRepo     ConfigRepository
	decisions   DecisionRepository
	opLog       OperatorLogRepository
	settings    Settings
}

func NewService(
	campaigns CampaignRepository,
	constraints ConstraintRepository,
	allocations AllocationRepository,
	source MetricsSource,
	cfgRepo ConfigRepository,
	decisions DecisionRepository,
	opLog OperatorLogRepository,
	settings Settings,
) (*Service, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if settings.Weights == (Weights{}) {
		settings.Weights = DefaultWeights()
	}
	return &Service{
		campaigns:   campaigns,
		constraints: constraints,
		allocations: allocations,
		source:      source,
		cfgRepo:     cfgRepo,
		decisions:   decisions,
		opLog:       opLog,
		settings:    settings,
	}, nil
}

// Plan computes an allocation for a campaign without persisting it. Launch
// uses it before the campaign row changes state.
func (s *Service) Plan(ctx context.Context, campaign domain.Campaign) ([]domain.GeoAllocation, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, fmt.Errorf("context error: %w", err)
	}

	constraints, err := s.constraints.ListConstraints(ctx, campaign.ID)
	if err != nil {
		return nil, false, fmt.Errorf("load constraints: %w", err)
	}

	now := s.settings.Clock.Now()
	var rolling []domain.GeoMetrics
	if s.source != nil {
		rolling, err = s.source.GeoMetrics(ctx, campaign.ID, now.Add(-s.settings.Window), now)
		if err != nil {
			return nil, false, fmt.Errorf("load geo metrics: %w", err)
		}
	}

	stale := MetricsStale(rolling, now, s.settings.StaleAfter)

	allocs, err := Allocate(campaign, constraints, rolling, Options{
		Weights:    s.weightsFor(ctx, campaign.ID),
		Now:        now,
		StaleAfter: s.settings.StaleAfter,
	})
	if err != nil {
		return nil, stale, err
	}
	return allocs, stale, nil
}

// Recompute re-plans a campaign's allocation from current ledger metrics and
// replaces the stored rows.
func (s *Service) Recompute(ctx context.Context, campaignID string) ([]domain.GeoAllocation, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	campaign, ok, err := s.campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("load campaign: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("campaign %s: %w", campaignID, domain.ErrNotFound)
	}

	allocs, stale, err := s.Plan(ctx, campaign)
	if err != nil {
		if errors.Is(err, domain.ErrConstraintViolation) {
			metrics.GeoRecomputes.WithLabelValues("constraint_violation").Inc()
			s.appendLog(ctx, domain.OperatorLogEntry{
				CampaignID: campaignID,
				Kind:       domain.LogConstraintViolation,
				Reason:     err.Error(),
			})
		} else {
			metrics.GeoRecomputes.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	if stale {
		s.appendLog(ctx, domain.OperatorLogEntry{
			CampaignID: campaignID,
			Kind:       domain.LogStaleData,
			Reason:     "rolling geo metrics older than stale threshold, allocated uniformly within constraints",
		})
	}

	if err := s.allocations.ReplaceAllocations(ctx, campaignID, allocs); err != nil {
		metrics.GeoRecomputes.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("save allocations: %w", err)
	}

	s.recordDecision(ctx, campaign, allocs, stale)
	metrics.GeoRecomputes.WithLabelValues("ok").Inc()

	logger.Info("geo_allocation_recomputed",
		"campaign_id", campaignID,
		"geo_count", len(allocs),
		"stale_metrics", stale,
	)

	return allocs, nil
}

func (s *Service) GetAllocation(ctx context.Context, campaignID string) ([]domain.GeoAllocation, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	if _, ok, err := s.campaigns.GetCampaign(ctx, campaignID); err != nil {
		return nil, fmt.Errorf("load campaign: %w", err)
	} else if !ok {
		return nil, fmt.Errorf("campaign %s: %w", campaignID, domain.ErrNotFound)
	}

	allocs, err := s.allocations.ListAllocations(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list allocations: %w", err)
	}
	return allocs, nil
}

// SetConstraints replaces a draft campaign's constraints. Constraints are
// frozen once the campaign has launched.
func (s *Service) SetConstraints(ctx context.Context, campaignID string, constraints []domain.GeoConstraint) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	campaign, ok, err := s.campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("load campaign: %w", err)
	}
	if !ok {
		return fmt.Errorf("campaign %s: %w", campaignID, domain.ErrNotFound)
	}
	if campaign.Status != domain.CampaignDraft {
		return fmt.Errorf("constraints are immutable after launch: %w", domain.ErrInvalidState)
	}

	for i := range constraints {
		constraints[i].CampaignID = campaignID
		constraints[i].Geo = normalizeGeo(constraints[i].Geo)
	}

	// reject infeasible sets up front instead of at launch
	probe := campaign
	probe.DailyBudget = 0
	if _, err := Allocate(probe, constraints, nil, Options{}); err != nil {
		return err
	}

	return s.constraints.ReplaceConstraints(ctx, campaignID, constraints)
}

func (s *Service) weightsFor(ctx context.Context, campaignID string) Weights {
	w := s.settings.Weights
	if s.cfgRepo == nil {
		return w
	}
	cfg, ok, err := s.cfgRepo.GetConfig(ctx, campaignID)
	if err != nil || !ok {
		return w
	}
	if cfg.WeightROI+cfg.WeightCTR+cfg.WeightCPV > 0 {
		w = Weights{ROI: cfg.WeightROI, CTR: cfg.WeightCTR, CPV: cfg.WeightCPV}
	}
	return w
}

func (s *Service) recordDecision(ctx context.Context, campaign domain.Campaign, allocs []domain.GeoAllocation, stale bool) {
	if s.decisions == nil {
		return
	}

	fractions := map[string]any{}
	for _, a := range allocs {
		fractions[a.Geo] = a.Fraction
	}

	rec := domain.DecisionRecord{
		CampaignID: campaign.ID,
		Kind:       domain.DecisionGeoAllocation,
		Context: datatypes.JSONMap{
			"daily_budget":  campaign.DailyBudget,
			"fractions":     fractions,
			"stale_metrics": stale,
		},
	}
	if err := s.decisions.SaveDecision(ctx, rec); err != nil {
		logger.Warn("save_decision_failed", "campaign_id", campaign.ID, "error", err)
	}
}

func (s *Service) appendLog(ctx context.Context, entry domain.OperatorLogEntry) {
	if s.opLog == nil {
		return
	}
	if err := s.opLog.Append(ctx, entry); err != nil {
		logger.Warn("operator_log_failed", "campaign_id", entry.CampaignID, "kind", entry.Kind, "error", err)
	}
}

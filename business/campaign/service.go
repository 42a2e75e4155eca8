package campaign

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"adBudgetEngine/business/reinvest"
	"adBudgetEngine/domain"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"gorm.io/datatypes"
)

// ---- Repository interfaces ----

type CampaignRepository interface {
	// CreateCampaign stores the draft and its creatives in one transaction.
	CreateCampaign(ctx context.Context, c domain.Campaign, creatives []domain.Creative) error
	GetCampaign(ctx context.Context, id string) (domain.Campaign, bool, error)
	ListCampaigns(ctx context.Context, status domain.CampaignStatus) ([]domain.Campaign, error)
	// MarkLaunched writes the launch outcome if the campaign is still a draft.
	MarkLaunched(ctx context.Context, c domain.Campaign) (bool, error)
	TransitionStatus(ctx context.Context, id string, from, to domain.CampaignStatus) (bool, error)
}

type CreativeRepository interface {
	ListCreatives(ctx context.Context, campaignID string) ([]domain.Creative, error)
	SetCreativeStatus(ctx context.Context, creativeID string, status domain.CreativeStatus) error
}

type Classifier interface {
	Classify(features domain.ContentFeatures) (domain.Classification, error)
}

// ContentAnalyzer extracts features from source media when none were
// supplied with the campaign.
type ContentAnalyzer interface {
	Extract(ctx context.Context, sourceRef string) (domain.ContentFeatures, error)
}

type GeoPlanner interface {
	Plan(ctx context.Context, c domain.Campaign) ([]domain.GeoAllocation, bool, error)
	SetConstraints(ctx context.Context, campaignID string, constraints []domain.GeoConstraint) error
	GetAllocation(ctx context.Context, campaignID string) ([]domain.GeoAllocation, error)
}

type AllocationRepository interface {
	ReplaceAllocations(ctx context.Context, campaignID string, allocations []domain.GeoAllocation) error
}

type ExclusionService interface {
	Apply(ctx context.Context, spec domain.TargetingSpec) (domain.TargetingSpec, domain.ExclusionReport, error)
	Replace(ctx context.Context, campaignID string, identities []string) (domain.ExclusionList, error)
}

type Ledger interface {
	IssueTrackingCode(ctx context.Context, campaignID, creativeID, geo, segmentID string) (string, error)
	Aggregate(ctx context.Context, q domain.LedgerQuery) (domain.AttributionAggregate, error)
	AggregateBy(ctx context.Context, q domain.LedgerQuery, group domain.LedgerGroup) ([]domain.AttributionAggregate, error)
	SpendBy(ctx context.Context, q domain.LedgerQuery, group domain.LedgerGroup) ([]domain.SpendAggregate, error)
}

// Launcher is the launch half of the ad platform port.
type Launcher interface {
	LaunchCampaign(ctx context.Context, spec domain.LaunchSpec) (string, error)
}

type Reinvestor interface {
	Evaluate(ctx context.Context, campaignID string, trigger domain.CycleTrigger) (reinvest.Result, error)
	Cancel(campaignID string) bool
	Escalated(c domain.Campaign) bool
}

type ArmSelector interface {
	SelectArms(ctx context.Context, campaignID string, k int) ([]domain.Arm, error)
}

type OperatorLogRepository interface {
	Append(ctx context.Context, entry domain.OperatorLogEntry) error
	List(ctx context.Context, filter domain.OperatorLogFilter) ([]domain.OperatorLogEntry, error)
}

// ---- Config ----

type Config struct {
	Campaigns   CampaignRepository
	Creatives   CreativeRepository
	Classifier  Classifier
	Analyzer    ContentAnalyzer
	Geo         GeoPlanner
	Allocations AllocationRepository
	Exclusions  ExclusionService
	Ledger      Ledger
	Platform    Launcher
	Reinvest    Reinvestor
	Bandit      ArmSelector
	OpLog       OperatorLogRepository

	BaseCTR        float64
	CTRMultiplierK float64
	Clock          clockwork.Clock
}

func (c *Config) Validate() error {
	switch {
	case c.Campaigns == nil:
		return errors.New("campaign: campaign repository is required")
	case c.Creatives == nil:
		return errors.New("campaign: creative repository is required")
	case c.Classifier == nil:
		return errors.New("campaign: classifier is required")
	case c.Geo == nil:
		return errors.New("campaign: geo planner is required")
	case c.Ledger == nil:
		return errors.New("campaign: ledger is required")
	case c.Platform == nil:
		return errors.New("campaign: ad platform is required")
	}
	if c.BaseCTR <= 0 {
		c.BaseCTR = 0.01
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return nil
}

type Service struct {
	cfg Config
}

func NewService(cfg Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Service{cfg: cfg}, nil
}

// ---- Create / read ----

type CreativeInput struct {
	SourceReference string
	DerivedScore    float64
}

type CreateInput struct {
	ArtistID    string
	ContentID   string
	DailyBudget float64
	Currency    string
	Geos        []string
	SegmentID   string
	AudienceIDs []string
	Features    *domain.ContentFeatures
	Creatives   []CreativeInput
	Constraints []domain.GeoConstraint
}

// Create stores a draft campaign with its creatives and constraints.
func (s *Service) Create(ctx context.Context, in CreateInput) (domain.Campaign, error) {
	if err := ctx.Err(); err != nil {
		return domain.Campaign{}, fmt.Errorf("context error: %w", err)
	}
	if in.DailyBudget <= 0 {
		return domain.Campaign{}, fmt.Errorf("%w: daily budget must be positive", domain.ErrInvalidInput)
	}
	if len(in.Creatives) == 0 {
		return domain.Campaign{}, fmt.Errorf("%w: at least one creative is required", domain.ErrInvalidInput)
	}

	c := newDraft(in)
	if len(c.Geos) == 0 && len(in.Constraints) == 0 {
		return domain.Campaign{}, fmt.Errorf("%w: at least one geography is required", domain.ErrInvalidInput)
	}

	creatives := make([]domain.Creative, 0, len(in.Creatives))
	for _, ci := range in.Creatives {
		creatives = append(creatives, domain.Creative{
			ID:              newID(),
			CampaignID:      c.ID,
			SourceReference: ci.SourceReference,
			DerivedScore:    ci.DerivedScore,
			Status:          domain.CreativeCandidate,
		})
	}

	if err := s.cfg.Campaigns.CreateCampaign(ctx, c, creatives); err != nil {
		return domain.Campaign{}, fmt.Errorf("create campaign: %w", err)
	}

	if len(in.Constraints) > 0 {
		if err := s.cfg.Geo.SetConstraints(ctx, c.ID, in.Constraints); err != nil {
			return c, err
		}
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Campaign, []domain.Creative, error) {
	if err := ctx.Err(); err != nil {
		return domain.Campaign{}, nil, fmt.Errorf("context error: %w", err)
	}
	c, err := s.load(ctx, id)
	if err != nil {
		return domain.Campaign{}, nil, err
	}
	creatives, err := s.cfg.Creatives.ListCreatives(ctx, id)
	if err != nil {
		return domain.Campaign{}, nil, fmt.Errorf("list creatives: %w", err)
	}
	return c, creatives, nil
}

func (s *Service) List(ctx context.Context, status domain.CampaignStatus) ([]domain.Campaign, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	return s.cfg.Campaigns.ListCampaigns(ctx, status)
}

func (s *Service) SetConstraints(ctx context.Context, id string, constraints []domain.GeoConstraint) error {
	return s.cfg.Geo.SetConstraints(ctx, id, constraints)
}

func (s *Service) ReplaceExclusions(ctx context.Context, id string, identities []string) (domain.ExclusionList, error) {
	if s.cfg.Exclusions == nil {
		return domain.ExclusionList{}, fmt.Errorf("exclusions not configured: %w", domain.ErrInvalidState)
	}
	if _, err := s.load(ctx, id); err != nil {
		return domain.ExclusionList{}, err
	}
	return s.cfg.Exclusions.Replace(ctx, id, identities)
}

func (s *Service) ListOperatorLogs(ctx context.Context, filter domain.OperatorLogFilter) ([]domain.OperatorLogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	if s.cfg.OpLog == nil {
		return []domain.OperatorLogEntry{}, nil
	}
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.cfg.OpLog.List(ctx, filter)
}

func (s *Service) load(ctx context.Context, id string) (domain.Campaign, error) {
	c, ok, err := s.cfg.Campaigns.GetCampaign(ctx, id)
	if err != nil {
		return domain.Campaign{}, fmt.Errorf("load campaign: %w", err)
	}
	if !ok {
		return domain.Campaign{}, fmt.Errorf("campaign %s: %w", id, domain.ErrNotFound)
	}
	return c, nil
}

func (s *Service) appendLog(ctx context.Context, entry domain.OperatorLogEntry) {
	if s.cfg.OpLog == nil {
		return
	}
	_ = s.cfg.OpLog.Append(ctx, entry)
}

func newDraft(in CreateInput) domain.Campaign {
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = "USD"
	}

	seen := map[string]bool{}
	var geos []string
	add := func(g string) {
		g = strings.ToUpper(strings.TrimSpace(g))
		if g == "" || seen[g] {
			return
		}
		seen[g] = true
		geos = append(geos, g)
	}
	for _, g := range in.Geos {
		add(g)
	}
	for _, gc := range in.Constraints {
		add(gc.Geo)
	}

	c := domain.Campaign{
		ID:          newID(),
		ArtistID:    in.ArtistID,
		ContentID:   in.ContentID,
		DailyBudget: in.DailyBudget,
		Currency:    currency,
		Status:      domain.CampaignDraft,
		CycleState:  domain.CycleMonitoring,
		Geos:        geos,
		SegmentID:   in.SegmentID,
		AudienceIDs: in.AudienceIDs,
	}
	if in.Features != nil {
		c.Features = datatypes.NewJSONType(*in.Features)
	}
	return c
}

func newID() string {
	return uuid.NewString()
}

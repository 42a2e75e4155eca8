package campaign

import (
	"context"
	"errors"
	"fmt"

	"adBudgetEngine/business/classifier"
	"adBudgetEngine/domain"
	"adBudgetEngine/pkg/logger"

	"gorm.io/datatypes"
)

type LaunchReport struct {
	Campaign       domain.Campaign              `json:"campaign"`
	Classification domain.Classification        `json:"classification"`
	Allocation     []domain.GeoAllocation       `json:"allocation"`
	Exclusion      domain.ExclusionReport       `json:"exclusion"`
	TrackingCodes  map[string]map[string]string `json:"tracking_codes"` // creative -> geo -> code
	Warnings       []string                     `json:"warnings,omitempty"`
}

// Launch takes a draft live: classify, plan geo budgets, prune the
// audience, issue tracking codes and call the ad platform. Nothing is
// persisted as launched unless the platform accepted the campaign.
func (s *Service) Launch(ctx context.Context, id string) (LaunchReport, error) {
	if err := ctx.Err(); err != nil {
		return LaunchReport{}, fmt.Errorf("context error: %w", err)
	}

	c, err := s.load(ctx, id)
	if err != nil {
		return LaunchReport{}, err
	}
	if c.Status != domain.CampaignDraft {
		return LaunchReport{}, fmt.Errorf("campaign %s is %s: %w", id, c.Status, domain.ErrInvalidState)
	}

	creatives, err := s.cfg.Creatives.ListCreatives(ctx, id)
	if err != nil {
		return LaunchReport{}, fmt.Errorf("list creatives: %w", err)
	}
	if len(creatives) == 0 {
		return LaunchReport{}, fmt.Errorf("%w: campaign has no creatives", domain.ErrInvalidInput)
	}

	var report LaunchReport

	// 1) classify and derive the predicted CTR
	cl, err := s.classify(ctx, c, creatives)
	if err != nil {
		return LaunchReport{}, err
	}
	if cl.LowConfidence {
		report.Warnings = append(report.Warnings, "low confidence classification, CTR multiplier disabled")
		s.appendLog(ctx, domain.OperatorLogEntry{
			CampaignID: id,
			Kind:       domain.LogLowConfidence,
			Reason:     classifier.AsLowConfidence(cl).Error(),
			Details: datatypes.JSONMap{
				"genre":      cl.Genre,
				"subgenre":   cl.Subgenre,
				"confidence": cl.Confidence,
			},
		})
	}
	c.Genre = cl.Genre
	c.Subgenre = cl.Subgenre
	c.Confidence = cl.Confidence
	c.LowConfidence = cl.LowConfidence
	c.PredictedCTR = classifier.PredictedCTR(s.cfg.BaseCTR, cl, s.cfg.CTRMultiplierK)
	report.Classification = cl

	// 2) geo plan; infeasible constraints block launch
	allocs, stale, err := s.cfg.Geo.Plan(ctx, c)
	if err != nil {
		if errors.Is(err, domain.ErrConstraintViolation) {
			s.appendLog(ctx, domain.OperatorLogEntry{
				CampaignID: id,
				Kind:       domain.LogConstraintViolation,
				Reason:     err.Error(),
			})
		}
		return LaunchReport{}, err
	}
	if stale {
		report.Warnings = append(report.Warnings, "geo metrics stale, allocated uniformly within constraints")
	}
	report.Allocation = allocs

	geos := make([]string, 0, len(allocs))
	geoBudgets := make(map[string]float64, len(allocs))
	for _, a := range allocs {
		geos = append(geos, a.Geo)
		geoBudgets[a.Geo] = a.Amount
	}

	// 3) exclusions run after allocation and before the platform call
	spec := domain.TargetingSpec{
		CampaignID:  id,
		SegmentID:   c.SegmentID,
		Geos:        geos,
		AudienceIDs: append([]string(nil), c.AudienceIDs...),
	}
	if s.cfg.Exclusions != nil {
		filtered, rep, err := s.cfg.Exclusions.Apply(ctx, spec)
		if err != nil {
			return LaunchReport{}, fmt.Errorf("apply exclusions: %w", err)
		}
		spec = filtered
		report.Exclusion = rep
		if rep.Stale {
			c.ExclusionStale = true
			report.Warnings = append(report.Warnings, "exclusion list stale")
		}
	}

	// 4) one tracking code per (creative, geo)
	report.TrackingCodes = make(map[string]map[string]string, len(creatives))
	launchCreatives := make([]domain.LaunchCreative, 0, len(creatives))
	for _, cr := range creatives {
		if cr.Status == domain.CreativeRetired {
			continue
		}
		codes := make(map[string]string, len(geos))
		for _, g := range geos {
			code, err := s.cfg.Ledger.IssueTrackingCode(ctx, id, cr.ID, g, c.SegmentID)
			if err != nil {
				return LaunchReport{}, fmt.Errorf("issue tracking code: %w", err)
			}
			codes[g] = code
		}
		report.TrackingCodes[cr.ID] = codes
		launchCreatives = append(launchCreatives, domain.LaunchCreative{
			CreativeID:      cr.ID,
			SourceReference: cr.SourceReference,
			TrackingCodes:   codes,
		})
	}

	// 5) the platform call
	platformID, err := s.cfg.Platform.LaunchCampaign(ctx, domain.LaunchSpec{
		CampaignID:    id,
		DailyBudget:   c.DailyBudget,
		Currency:      c.Currency,
		GeoBudgets:    geoBudgets,
		Targeting:     spec,
		Creatives:     launchCreatives,
		PredictedCTR:  c.PredictedCTR,
		IdempotencyID: "launch:" + id,
	})
	if err != nil {
		s.appendLog(ctx, domain.OperatorLogEntry{
			CampaignID: id,
			Kind:       domain.LogExternalCallFailure,
			Reason:     err.Error(),
			Details:    datatypes.JSONMap{"operation": "launch_campaign"},
		})
		return LaunchReport{}, fmt.Errorf("launch campaign: %w", err)
	}

	// 6) persist
	now := s.cfg.Clock.Now()
	c.PlatformCampaignID = platformID
	c.Status = domain.CampaignActive
	c.CycleState = domain.CycleMonitoring
	c.LaunchedAt = &now

	bctx := context.WithoutCancel(ctx)
	if s.cfg.Allocations != nil {
		if err := s.cfg.Allocations.ReplaceAllocations(bctx, id, allocs); err != nil {
			return LaunchReport{}, fmt.Errorf("save allocations: %w", err)
		}
	}
	ok, err := s.cfg.Campaigns.MarkLaunched(bctx, c)
	if err != nil {
		return LaunchReport{}, fmt.Errorf("mark launched: %w", err)
	}
	if !ok {
		return LaunchReport{}, fmt.Errorf("campaign %s left draft during launch: %w", id, domain.ErrInvalidState)
	}
	for _, cr := range creatives {
		if cr.Status != domain.CreativeCandidate {
			continue
		}
		if err := s.cfg.Creatives.SetCreativeStatus(bctx, cr.ID, domain.CreativeRunning); err != nil {
			logger.Warn("set_creative_status_failed", "campaign_id", id, "creative_id", cr.ID, "error", err)
		}
	}

	logger.Info("campaign_launched",
		"campaign_id", id,
		"platform_campaign_id", platformID,
		"genre", c.Genre,
		"subgenre", c.Subgenre,
		"low_confidence", c.LowConfidence,
		"geos", len(allocs),
	)

	report.Campaign = c
	return report, nil
}

// classify prefers inline features and falls back to the content analyzer.
// A campaign with no usable features launches as low confidence.
func (s *Service) classify(ctx context.Context, c domain.Campaign, creatives []domain.Creative) (domain.Classification, error) {
	features := c.Features.Data()

	if features.Empty() && s.cfg.Analyzer != nil {
		ref := c.ContentID
		if ref == "" {
			ref = creatives[0].SourceReference
		}
		extracted, err := s.cfg.Analyzer.Extract(ctx, ref)
		if err != nil {
			logger.Warn("content_analysis_failed", "campaign_id", c.ID, "source", ref, "error", err)
		} else {
			features = extracted
		}
	}

	cl, err := s.cfg.Classifier.Classify(features)
	if errors.Is(err, domain.ErrInvalidInput) {
		return domain.Classification{LowConfidence: true}, nil
	}
	if err != nil {
		return domain.Classification{}, fmt.Errorf("classify: %w", err)
	}
	return cl, nil
}

// Pause stops reinvestment. An in-flight cycle is cancelled.
func (s *Service) Pause(ctx context.Context, id string) (domain.Campaign, error) {
	return s.transition(ctx, id, domain.CampaignPaused, true, domain.CampaignActive, domain.CampaignReinvesting)
}

func (s *Service) Resume(ctx context.Context, id string) (domain.Campaign, error) {
	return s.transition(ctx, id, domain.CampaignActive, false, domain.CampaignPaused)
}

// End is terminal.
func (s *Service) End(ctx context.Context, id string) (domain.Campaign, error) {
	return s.transition(ctx, id, domain.CampaignEnded, true,
		domain.CampaignDraft, domain.CampaignActive, domain.CampaignReinvesting, domain.CampaignPaused)
}

func (s *Service) transition(ctx context.Context, id string, to domain.CampaignStatus, cancelCycle bool, from ...domain.CampaignStatus) (domain.Campaign, error) {
	if err := ctx.Err(); err != nil {
		return domain.Campaign{}, fmt.Errorf("context error: %w", err)
	}

	c, err := s.load(ctx, id)
	if err != nil {
		return domain.Campaign{}, err
	}

	allowed := false
	for _, f := range from {
		if c.Status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return domain.Campaign{}, fmt.Errorf("campaign %s cannot go from %s to %s: %w", id, c.Status, to, domain.ErrInvalidState)
	}

	ok, err := s.cfg.Campaigns.TransitionStatus(ctx, id, c.Status, to)
	if err != nil {
		return domain.Campaign{}, fmt.Errorf("update status: %w", err)
	}
	if !ok {
		return domain.Campaign{}, fmt.Errorf("campaign %s changed concurrently: %w", id, domain.ErrInvalidState)
	}

	if cancelCycle && s.cfg.Reinvest != nil && s.cfg.Reinvest.Cancel(id) {
		logger.Info("reinvest_cycle_cancel_requested", "campaign_id", id, "reason", string(to))
	}

	logger.Info("campaign_status_changed", "campaign_id", id, "from", c.Status, "to", to)
	c.Status = to
	return c, nil
}

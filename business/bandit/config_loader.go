package bandit

import (
	"context"

	"adBudgetEngine/domain"
)

// loadConfig layers the campaign row over the global "*" row over the
// process defaults. Zero fields in a row fall through.
func (s *Service) loadConfig(ctx context.Context, campaignID string) Config {
	cfg := s.defaultCfg
	if s.cfgRepo == nil {
		return cfg
	}

	for _, key := range []string{GlobalConfigKey, campaignID} {
		row, ok, err := s.cfgRepo.GetConfig(ctx, key)
		if err != nil || !ok {
			continue
		}
		cfg = overlay(cfg, row)
	}

	return cfg
}

func overlay(cfg Config, row domain.OptimizerConfig) Config {
	if row.MinPulls > 0 {
		cfg.MinPulls = row.MinPulls
	}
	if row.ColdStartBonus > 0 {
		cfg.ColdStartBonus = row.ColdStartBonus
	}
	if row.TopK > 0 {
		cfg.TopK = row.TopK
	}
	if row.WindowHours > 0 {
		cfg.WindowHours = row.WindowHours
	}
	return cfg
}

// GetConfig returns the stored override row for a campaign or "*".
func (s *Service) GetConfig(ctx context.Context, campaignID string) (domain.OptimizerConfig, bool, error) {
	if s.cfgRepo == nil {
		return domain.OptimizerConfig{}, false, nil
	}
	return s.cfgRepo.GetConfig(ctx, campaignID)
}

func (s *Service) UpsertConfig(ctx context.Context, row domain.OptimizerConfig) error {
	if s.cfgRepo == nil {
		return nil
	}
	if row.CampaignID == "" {
		row.CampaignID = GlobalConfigKey
	}
	return s.cfgRepo.UpsertConfig(ctx, row)
}

// EffectiveConfig is the merged config the optimizer would use right now.
func (s *Service) EffectiveConfig(ctx context.Context, campaignID string) Config {
	return s.loadConfig(ctx, campaignID)
}

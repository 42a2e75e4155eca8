package bandit

import (
	"context"

	"adBudgetEngine/domain"
)

type Config struct {
	// arms need this many pulls before Thompson Sampling takes over from UCB1
	MinPulls int

	// added on top of the best warm score for arms that were never pulled
	ColdStartBonus float64

	TopK int

	// trailing window the reward counts are read from
	WindowHours int
}

const (
	defaultMinPulls       = 20
	defaultColdStartBonus = 1.0
	defaultTopK           = 3
	defaultWindowHours    = 6

	// global override row
	GlobalConfigKey = "*"
)

func DefaultConfig() Config {
	return Config{
		MinPulls:       defaultMinPulls,
		ColdStartBonus: defaultColdStartBonus,
		TopK:           defaultTopK,
		WindowHours:    defaultWindowHours,
	}
}

// ConfigRepository reads per-campaign optimizer overrides from the DB.
type ConfigRepository interface {
	GetConfig(ctx context.Context, campaignID string) (domain.OptimizerConfig, bool, error)
	UpsertConfig(ctx context.Context, cfg domain.OptimizerConfig) error
}

// Package bootstrap wires repositories and services into one engine graph
// shared by the HTTP server and the CLI.
package bootstrap

import (
	"errors"
	"fmt"
	"time"

	"adBudgetEngine/business/attribution"
	"adBudgetEngine/business/bandit"
	"adBudgetEngine/business/campaign"
	"adBudgetEngine/business/classifier"
	"adBudgetEngine/business/exclusion"
	"adBudgetEngine/business/geo"
	"adBudgetEngine/business/reinvest"
	"adBudgetEngine/internal/repository/adplatform"
	"adBudgetEngine/internal/repository/analyzer"
	"adBudgetEngine/internal/repository/notification"
	psqlRepo "adBudgetEngine/internal/repository/postgres"
	redisRepo "adBudgetEngine/internal/repository/redis"
	"adBudgetEngine/pkg/config"
	"adBudgetEngine/pkg/logger"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Engine struct {
	Campaigns  *campaign.Service
	Geo        *geo.Service
	Ledger     *attribution.Service
	Bandit     *bandit.Service
	Exclusions *exclusion.Service
	Scheduler  *reinvest.Scheduler
	Loop       *reinvest.Loop
}

// NewPlatform picks the ad platform adapter and wraps it with retries.
func NewPlatform(cfg *config.Config) (*adplatform.Retrying, error) {
	var port adplatform.Port
	switch cfg.AdPlatform.Mode {
	case "http":
		port = adplatform.NewHTTPClient(adplatform.HTTPConfig{
			BaseURL:        cfg.AdPlatform.BaseURL,
			APIKey:         cfg.AdPlatform.APIKey,
			RequestsPerSec: cfg.AdPlatform.RequestsPerSec,
			Burst:          cfg.AdPlatform.Burst,
			Timeout:        cfg.AdPlatform.Timeout,
		})
	case "sandbox", "":
		logger.Warn("Using sandbox ad platform")
		port = adplatform.NewSandbox()
	default:
		return nil, fmt.Errorf("unknown ad platform mode %q", cfg.AdPlatform.Mode)
	}

	return adplatform.NewRetrying(port, adplatform.RetryConfig{
		MaxTries:   cfg.Engine.RetryMaxTries,
		MaxElapsed: cfg.Engine.RetryMaxElapsed,
	})
}

func Build(cfg *config.Config, db *gorm.DB, rdb *redis.Client, clock clockwork.Clock) (*Engine, error) {
	if db == nil {
		return nil, errors.New("database is required")
	}
	if rdb == nil {
		return nil, errors.New("redis client is required")
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	eng := cfg.Engine

	// Init repo
	campaignRepo := psqlRepo.NewCampaignRepository(db)
	creativeRepo := psqlRepo.NewCreativeRepository(db)
	geoRepo := psqlRepo.NewGeoRepository(db)
	ledgerRepo := psqlRepo.NewLedgerRepository(db)
	armRepo := psqlRepo.NewArmRepository(db)
	optimizerCfgRepo := psqlRepo.NewOptimizerConfigRepository(db)
	cycleRepo := psqlRepo.NewCycleRepository(db)
	opLogRepo := psqlRepo.NewOperatorLogRepository(db)
	decisionRepo := psqlRepo.NewDecisionRepository(db)
	leaseRepo := redisRepo.NewLeaseRepository(rdb)
	exclusionStore := redisRepo.NewExclusionRepository(rdb)

	mailjet := notification.NewMailjetRepository(notification.MailjetConfig{
		MailjetBaseURL:           cfg.Mailjet.MailjetBaseUrl,
		MailjetBasicAuthUsername: cfg.Mailjet.MailjetBasicAuthUsername,
		MailjetBasicAuthPassword: cfg.Mailjet.MailjetBasicAuthPassword,
		MailjetSenderEmail:       cfg.Mailjet.MailjetSenderEmail,
		MailjetSenderName:        cfg.Mailjet.MailjetSenderName,
		OperatorEmail:            cfg.Mailjet.OperatorEmail,
	})

	platform, err := NewPlatform(cfg)
	if err != nil {
		return nil, err
	}

	// Init service
	ledger, err := attribution.NewService(ledgerRepo, ledgerRepo, ledgerRepo, opLogRepo, attribution.Config{
		CacheTTL: eng.AggregateCacheTTL,
		Clock:    clock,
	})
	if err != nil {
		return nil, fmt.Errorf("attribution: %w", err)
	}

	geoSvc, err := geo.NewService(campaignRepo, geoRepo, geoRepo, ledger, optimizerCfgRepo, decisionRepo, opLogRepo, geo.Settings{
		Window:     eng.GeoMetricsWindow,
		StaleAfter: eng.GeoStaleAfter,
		Weights:    geo.Weights{ROI: eng.WeightROI, CTR: eng.WeightCTR, CPV: eng.WeightCPV},
		Clock:      clock,
	})
	if err != nil {
		return nil, fmt.Errorf("geo: %w", err)
	}

	exclusions, err := exclusion.NewService(exclusionStore, campaignRepo, opLogRepo, exclusion.Config{
		ListTTL: eng.ExclusionTTL,
		Clock:   clock,
	})
	if err != nil {
		return nil, fmt.Errorf("exclusion: %w", err)
	}

	banditSvc := bandit.NewService(creativeRepo, geoRepo, armRepo, ledger, optimizerCfgRepo, decisionRepo, nil, bandit.Config{
		MinPulls:       eng.MinPulls,
		ColdStartBonus: eng.ColdStartBonus,
		TopK:           eng.TopK,
		WindowHours:    int(eng.ReinvestWindow / time.Hour),
	}, clock)

	retryCfg := adplatform.RetryConfig{MaxTries: eng.RetryMaxTries, MaxElapsed: eng.RetryMaxElapsed}
	if err := retryCfg.Validate(); err != nil {
		return nil, fmt.Errorf("ad platform retry: %w", err)
	}

	scheduler, err := reinvest.NewScheduler(reinvest.Config{
		Campaigns:   campaignRepo,
		Cycles:      cycleRepo,
		Ledger:      ledger,
		Allocations: geoRepo,
		Creatives:   creativeRepo,
		Platform:    platform,
		Lease:       leaseRepo,
		Alerter:     mailjet,
		Overrides:   optimizerCfgRepo,
		Decisions:   decisionRepo,
		OpLog:       opLogRepo,

		PlatformBudget: retryCfg.MaxElapsed + cfg.AdPlatform.Timeout,
		Policy: reinvest.Policy{
			ROIThreshold:        eng.ROIThreshold,
			TopN:                eng.TopN,
			Increment:           eng.IncrementAmount,
			Window:              eng.ReinvestWindow,
			MaxConsecutiveFails: eng.MaxConsecutiveFails,
			LeaseTTL:            eng.LeaseTTL,
		},
		Clock: clock,
	})
	if err != nil {
		return nil, fmt.Errorf("reinvest: %w", err)
	}

	loop, err := reinvest.NewLoop(scheduler, reinvest.LoopConfig{
		Tick:       eng.SchedulerTick,
		Workers:    eng.SchedulerWorkers,
		Geo:        geoSvc,
		GeoCadence: eng.GeoCadence,
	})
	if err != nil {
		return nil, fmt.Errorf("reinvest loop: %w", err)
	}

	campaignCfg := campaign.Config{
		Campaigns:      campaignRepo,
		Creatives:      creativeRepo,
		Classifier:     classifier.NewClassifier(classifier.Config{ConfidenceFloor: eng.ClassifierFloor}),
		Geo:            geoSvc,
		Allocations:    geoRepo,
		Exclusions:     exclusions,
		Ledger:         ledger,
		Platform:       platform,
		Reinvest:       scheduler,
		Bandit:         banditSvc,
		OpLog:          opLogRepo,
		BaseCTR:        eng.BaseCTR,
		CTRMultiplierK: eng.CTRMultiplierK,
		Clock:          clock,
	}
	if cfg.Analyzer.BaseURL != "" {
		campaignCfg.Analyzer = analyzer.NewHTTPAnalyzer(analyzer.Config{
			BaseURL: cfg.Analyzer.BaseURL,
			Timeout: cfg.Analyzer.Timeout,
		})
	}
	campaigns, err := campaign.NewService(campaignCfg)
	if err != nil {
		return nil, fmt.Errorf("campaign: %w", err)
	}

	return &Engine{
		Campaigns:  campaigns,
		Geo:        geoSvc,
		Ledger:     ledger,
		Bandit:     banditSvc,
		Exclusions: exclusions,
		Scheduler:  scheduler,
		Loop:       loop,
	}, nil
}

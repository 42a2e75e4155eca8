package exclusion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"adBudgetEngine/domain"
	"adBudgetEngine/pkg/logger"

	"github.com/jellydator/ttlcache/v3"
	"github.com/jonboulle/clockwork"
	"gorm.io/datatypes"
)

const defaultCacheTTL = 5 * time.Minute

// Store persists exclusion lists out of band from the launch path.
type Store interface {
	Load(ctx context.Context, campaignID string) (domain.ExclusionList, bool, error)
	Save(ctx context.Context, list domain.ExclusionList) error
}

type CampaignFlagger interface {
	SetExclusionStale(ctx context.Context, campaignID string, stale bool) error
}

type OperatorLogRepository interface {
	Append(ctx context.Context, entry domain.OperatorLogEntry) error
}

type Config struct {
	// ListTTL is how long a refreshed list is considered fresh.
	ListTTL  time.Duration
	CacheTTL time.Duration
	Clock    clockwork.Clock
}

func (c *Config) Validate() error {
	if c.Clock == nil {
		return errors.New("clock is required")
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = defaultCacheTTL
	}
	return nil
}

type Service struct {
	store   Store
	flagger CampaignFlagger
	opLog   OperatorLogRepository
	cfg     Config

	cache   *ttlcache.Cache[string, domain.ExclusionList]
	cacheMu sync.RWMutex
}

func NewService(store Store, flagger CampaignFlagger, opLog OperatorLogRepository, cfg Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cache := ttlcache.New(
		ttlcache.WithTTL[string, domain.ExclusionList](cfg.CacheTTL),
		ttlcache.WithDisableTouchOnHit[string, domain.ExclusionList](),
	)

	return &Service{
		store:   store,
		flagger: flagger,
		opLog:   opLog,
		cfg:     cfg,
		cache:   cache,
	}, nil
}

// List returns the campaign's exclusion list, from cache when possible. A
// campaign with no stored list gets an empty list without a ttl.
func (s *Service) List(ctx context.Context, campaignID string) (domain.ExclusionList, error) {
	if err := ctx.Err(); err != nil {
		return domain.ExclusionList{}, fmt.Errorf("context error: %w", err)
	}

	s.cacheMu.RLock()
	cached := s.cache.Get(campaignID)
	s.cacheMu.RUnlock()
	if cached != nil {
		return cached.Value(), nil
	}

	list, ok, err := s.store.Load(ctx, campaignID)
	if err != nil {
		return domain.ExclusionList{}, fmt.Errorf("load exclusion list: %w", err)
	}
	if ok {
		list.TTL = s.cfg.ListTTL
	} else {
		// nothing to exclude is never stale
		list = domain.ExclusionList{CampaignID: campaignID, Identities: map[string]struct{}{}}
	}

	s.cacheMu.Lock()
	s.cache.Set(campaignID, list, ttlcache.DefaultTTL)
	s.cacheMu.Unlock()

	return list, nil
}

// Replace swaps the stored list and refreshes its timestamp.
func (s *Service) Replace(ctx context.Context, campaignID string, identities []string) (domain.ExclusionList, error) {
	if err := ctx.Err(); err != nil {
		return domain.ExclusionList{}, fmt.Errorf("context error: %w", err)
	}

	set := make(map[string]struct{}, len(identities))
	for _, id := range identities {
		if id != "" {
			set[id] = struct{}{}
		}
	}

	list := domain.ExclusionList{
		CampaignID:  campaignID,
		Identities:  set,
		RefreshedAt: s.cfg.Clock.Now(),
		TTL:         s.cfg.ListTTL,
	}
	if err := s.store.Save(ctx, list); err != nil {
		return domain.ExclusionList{}, fmt.Errorf("save exclusion list: %w", err)
	}

	s.cacheMu.Lock()
	s.cache.Set(campaignID, list, ttlcache.DefaultTTL)
	s.cacheMu.Unlock()

	if s.flagger != nil {
		if err := s.flagger.SetExclusionStale(ctx, campaignID, false); err != nil {
			logger.Warn("clear_exclusion_stale_failed", "campaign_id", campaignID, "error", err)
		}
	}

	logger.Info("exclusion_list_replaced", "campaign_id", campaignID, "size", len(set))
	return list, nil
}

// Apply filters the targeting spec against the campaign's list. Errors
// loading the list are returned; staleness is not an error.
func (s *Service) Apply(ctx context.Context, spec domain.TargetingSpec) (domain.TargetingSpec, domain.ExclusionReport, error) {
	list, err := s.List(ctx, spec.CampaignID)
	if err != nil {
		return domain.TargetingSpec{}, domain.ExclusionReport{}, err
	}

	filtered, report := Filter(spec, list, s.cfg.Clock.Now())

	logger.Info("audience_filtered",
		"campaign_id", spec.CampaignID,
		"original", report.OriginalCount,
		"excluded", report.ExcludedCount,
		"exclusion_rate", report.ExclusionRate,
		"stale", report.Stale,
	)

	if report.Stale {
		s.flagStale(ctx, spec.CampaignID, list)
	}

	return filtered, report, nil
}

func (s *Service) flagStale(ctx context.Context, campaignID string, list domain.ExclusionList) {
	if s.flagger != nil {
		if err := s.flagger.SetExclusionStale(ctx, campaignID, true); err != nil {
			logger.Warn("set_exclusion_stale_failed", "campaign_id", campaignID, "error", err)
		}
	}

	if s.opLog == nil {
		return
	}
	details := datatypes.JSONMap{"ttl": list.TTL.String()}
	if !list.RefreshedAt.IsZero() {
		details["refreshed_at"] = list.RefreshedAt.UTC().Format(time.RFC3339)
	}
	if err := s.opLog.Append(ctx, domain.OperatorLogEntry{
		CampaignID: campaignID,
		Kind:       domain.LogStaleData,
		Reason:     "exclusion list beyond ttl, applied best-effort",
		Details:    details,
	}); err != nil {
		logger.Warn("operator_log_failed", "campaign_id", campaignID, "error", err)
	}
}

// Invalidate drops the cached list so the next read goes to the store.
func (s *Service) Invalidate(campaignID string) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.cache.Delete(campaignID)
}

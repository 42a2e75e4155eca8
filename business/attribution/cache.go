package attribution

import (
	"fmt"
	"strings"
	"time"

	"adBudgetEngine/domain"
)

func queryCacheKey(kind string, q domain.LedgerQuery, group domain.LedgerGroup) string {
	return fmt.Sprintf("%s|%s|%s|%d|%d",
		selectorKey(q), kind, group, unixOrZero(q.From), unixOrZero(q.To))
}

func selectorKey(q domain.LedgerQuery) string {
	switch {
	case q.Code != "":
		return "code:" + q.Code
	case q.CodePrefix != "":
		return "prefix:" + q.CodePrefix
	default:
		return "campaign:" + q.CampaignID
	}
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func (s *Service) cached(key string) (any, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	item := s.cache.Get(key)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

func (s *Service) store(key string, v any) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.cache.Set(key, v, s.cfg.CacheTTL)
}

// invalidate drops every cached aggregate a write to code could change.
func (s *Service) invalidate(tc domain.TrackingCode) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	for _, key := range s.cache.Keys() {
		sel, _, _ := strings.Cut(key, "|")
		switch {
		case sel == "campaign:"+tc.CampaignID, sel == "code:"+tc.Code:
			s.cache.Delete(key)
		case strings.HasPrefix(sel, "prefix:") && strings.HasPrefix(tc.Code, strings.TrimPrefix(sel, "prefix:")):
			s.cache.Delete(key)
		}
	}
}

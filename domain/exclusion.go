package domain

import "time"

// TargetingSpec is what gets handed to the ad platform at launch.
type TargetingSpec struct {
	CampaignID  string   `json:"campaign_id"`
	SegmentID   string   `json:"segment_id"`
	Geos        []string `json:"geos"`
	AudienceIDs []string `json:"audience_ids"`
}

type ExclusionList struct {
	CampaignID  string
	Identities  map[string]struct{}
	RefreshedAt time.Time
	TTL         time.Duration
}

func (l ExclusionList) Contains(identity string) bool {
	_, ok := l.Identities[identity]
	return ok
}

func (l ExclusionList) Stale(now time.Time) bool {
	if l.TTL <= 0 {
		return false
	}
	return l.RefreshedAt.IsZero() || now.Sub(l.RefreshedAt) > l.TTL
}

type ExclusionReport struct {
	CampaignID    string  `json:"campaign_id"`
	OriginalCount int     `json:"original_count"`
	ExcludedCount int     `json:"excluded_count"`
	ExclusionRate float64 `json:"exclusion_rate"`
	Stale         bool    `json:"stale"`
}

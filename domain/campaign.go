package domain

import (
	"time"

	"gorm.io/datatypes"
)

// CREATE TABLE public.campaigns (
//     id                   TEXT PRIMARY KEY,
//     artist_id            TEXT,
//     content_id           TEXT,
//     genre                TEXT,
//     subgenre             TEXT,
//     confidence           NUMERIC,
//     low_confidence       BOOLEAN DEFAULT FALSE,
//     predicted_ctr        NUMERIC,
//     daily_budget         NUMERIC NOT NULL,
//     currency             TEXT DEFAULT 'USD',
//     status               TEXT NOT NULL,
//     platform_campaign_id TEXT,
//     cycle_state          TEXT DEFAULT 'monitoring',
//     consecutive_failures INT DEFAULT 0,
//     exclusion_stale      BOOLEAN DEFAULT FALSE,
//     geos                 JSONB,
//     segment_id           TEXT,
//     audience_ids         JSONB,
//     features             JSONB,
//     created_at           TIMESTAMPTZ DEFAULT NOW(),
//     launched_at          TIMESTAMPTZ,
//     updated_at           TIMESTAMPTZ
// );

type CampaignStatus string

const (
	CampaignDraft       CampaignStatus = "draft"
	CampaignActive      CampaignStatus = "active"
	CampaignReinvesting CampaignStatus = "reinvesting"
	CampaignPaused      CampaignStatus = "paused"
	CampaignEnded       CampaignStatus = "ended"
)

// CycleState is the reinvestment scheduler position of a campaign.
type CycleState string

const (
	CycleMonitoring CycleState = "monitoring"
	CycleEvaluating CycleState = "evaluating"
)

type Campaign struct {
	ID                  string                              `gorm:"column:id;primaryKey" json:"id"`
	ArtistID            string                              `gorm:"column:artist_id" json:"artist_id"`
	ContentID           string                              `gorm:"column:content_id" json:"content_id"`
	Genre               string                              `gorm:"column:genre" json:"genre"`
	Subgenre            string                              `gorm:"column:subgenre" json:"subgenre"`
	Confidence          float64                             `gorm:"column:confidence;type:numeric" json:"confidence"`
	LowConfidence       bool                                `gorm:"column:low_confidence;default:false" json:"low_confidence"`
	PredictedCTR        float64                             `gorm:"column:predicted_ctr;type:numeric" json:"predicted_ctr"`
	DailyBudget         float64                             `gorm:"column:daily_budget;type:numeric;not null" json:"daily_budget"`
	Currency            string                              `gorm:"column:currency;default:USD" json:"currency"`
	Status              CampaignStatus                      `gorm:"column:status;not null;index" json:"status"`
	PlatformCampaignID  string                              `gorm:"column:platform_campaign_id" json:"platform_campaign_id,omitempty"`
	CycleState          CycleState                          `gorm:"column:cycle_state;default:monitoring" json:"cycle_state"`
	ConsecutiveFailures int                                 `gorm:"column:consecutive_failures;default:0" json:"consecutive_failures"`
	ExclusionStale      bool                                `gorm:"column:exclusion_stale;default:false" json:"exclusion_stale"`
	Geos                datatypes.JSONSlice[string]         `gorm:"column:geos;type:jsonb" json:"geos"`
	SegmentID           string                              `gorm:"column:segment_id" json:"segment_id"`
	AudienceIDs         datatypes.JSONSlice[string]         `gorm:"column:audience_ids;type:jsonb" json:"audience_ids,omitempty"`
	Features            datatypes.JSONType[ContentFeatures] `gorm:"column:features;type:jsonb" json:"features"`
	CreatedAt           time.Time                           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	LaunchedAt          *time.Time                          `gorm:"column:launched_at" json:"launched_at,omitempty"`
	UpdatedAt           time.Time                           `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Campaign) TableName() string {
	return "campaigns"
}

// Running reports whether the campaign is live on the ad platform.
func (c Campaign) Running() bool {
	return c.Status == CampaignActive || c.Status == CampaignReinvesting
}

type CreativeStatus string

const (
	CreativeCandidate CreativeStatus = "candidate"
	CreativeRunning   CreativeStatus = "running"
	CreativeBoosted   CreativeStatus = "boosted"
	CreativeRetired   CreativeStatus = "retired"
)

// Creative is one clip/variant promoted by a campaign.
type Creative struct {
	ID              string         `gorm:"column:id;primaryKey" json:"id"`
	CampaignID      string         `gorm:"column:campaign_id;not null;index" json:"campaign_id"`
	SourceReference string         `gorm:"column:source_reference" json:"source_reference"`
	DerivedScore    float64        `gorm:"column:derived_score;type:numeric" json:"derived_score"`
	Status          CreativeStatus `gorm:"column:status;not null" json:"status"`
	CreatedAt       time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Creative) TableName() string {
	return "creatives"
}

// Analytics is the read model exposed to dashboards.
type Analytics struct {
	CampaignID  string          `json:"campaign_id"`
	Visits      int64           `json:"visits"`
	Conversions int64           `json:"conversions"`
	Revenue     float64         `json:"revenue"`
	Spend       float64         `json:"spend"`
	ROI         float64         `json:"roi"`
	PerGeo      []GeoAnalytics  `json:"per_geo_breakdown"`
	Flags       map[string]bool `json:"flags,omitempty"`
}

type GeoAnalytics struct {
	Geo            string  `json:"geo"`
	Fraction       float64 `json:"fraction"`
	Visits         int64   `json:"visits"`
	Conversions    int64   `json:"conversions"`
	ConversionRate float64 `json:"conversion_rate"`
	Revenue        float64 `json:"revenue"`
	Spend          float64 `json:"spend"`
	ROI            float64 `json:"roi"`
}

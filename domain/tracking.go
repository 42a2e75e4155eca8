package domain

import "time"

type TrackingEventType string

const (
	EventVisit      TrackingEventType = "visit"
	EventConversion TrackingEventType = "conversion"
)

// TrackingCode links an ad click to downstream attribution events. The code
// is prefixed by the campaign and geography so prefix scans stay cheap.
type TrackingCode struct {
	Code       string    `gorm:"column:code;primaryKey" json:"code"`
	CampaignID string    `gorm:"column:campaign_id;not null;uniqueIndex:idx_tracking_tuple" json:"campaign_id"`
	CreativeID string    `gorm:"column:creative_id;not null;uniqueIndex:idx_tracking_tuple" json:"creative_id"`
	Geo        string    `gorm:"column:geo;not null;uniqueIndex:idx_tracking_tuple" json:"geo"`
	SegmentID  string    `gorm:"column:segment_id;not null;uniqueIndex:idx_tracking_tuple" json:"segment_id"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (TrackingCode) TableName() string {
	return "tracking_codes"
}

// AttributionEvent is append-only. CampaignID, CreativeID and Geo are copied
// from the tracking code at write time for read-side grouping.
type AttributionEvent struct {
	ID               string            `gorm:"column:id;primaryKey" json:"id"`
	Code             string            `gorm:"column:code;not null;index:idx_events_code_time,priority:1" json:"code"`
	CampaignID       string            `gorm:"column:campaign_id;not null;index:idx_events_campaign_time,priority:1" json:"campaign_id"`
	CreativeID       string            `gorm:"column:creative_id" json:"creative_id"`
	Geo              string            `gorm:"column:geo" json:"geo"`
	EventType        TrackingEventType `gorm:"column:event_type;not null" json:"event_type"`
	Revenue          *float64          `gorm:"column:revenue;type:numeric" json:"revenue,omitempty"`
	OrphanConversion bool              `gorm:"column:orphan_conversion;default:false" json:"orphan_conversion"`
	ExternalID       *string           `gorm:"column:external_id;uniqueIndex" json:"external_id,omitempty"`
	OccurredAt       time.Time         `gorm:"column:occurred_at;not null;index:idx_events_code_time,priority:2;index:idx_events_campaign_time,priority:2" json:"occurred_at"`
	ReceivedAt       time.Time         `gorm:"column:received_at;autoCreateTime" json:"received_at"`
}

func (AttributionEvent) TableName() string {
	return "attribution_events"
}

// SpendEntry is platform-reported delivery for one tracking code.
type SpendEntry struct {
	ID          string    `gorm:"column:id;primaryKey" json:"id"`
	Code        string    `gorm:"column:code;not null;index" json:"code"`
	CampaignID  string    `gorm:"column:campaign_id;not null;index:idx_spend_campaign_time,priority:1" json:"campaign_id"`
	CreativeID  string    `gorm:"column:creative_id" json:"creative_id"`
	Geo         string    `gorm:"column:geo" json:"geo"`
	Amount      float64   `gorm:"column:amount;type:numeric" json:"amount"`
	Impressions int64     `gorm:"column:impressions" json:"impressions"`
	Clicks      int64     `gorm:"column:clicks" json:"clicks"`
	Views       int64     `gorm:"column:views" json:"views"`
	ReportedAt  time.Time `gorm:"column:reported_at;not null;index:idx_spend_campaign_time,priority:2" json:"reported_at"`
}

func (SpendEntry) TableName() string {
	return "spend_entries"
}

type EventAck struct {
	EventID          string `json:"event_id"`
	Duplicate        bool   `json:"duplicate"`
	OrphanConversion bool   `json:"orphan_conversion"`
}

// LedgerQuery selects ledger rows. Exactly one of Code, CodePrefix or
// CampaignID is expected; zero From/To leave the range open.
type LedgerQuery struct {
	Code       string
	CodePrefix string
	CampaignID string
	From       time.Time
	To         time.Time
}

type LedgerGroup string

const (
	GroupNone     LedgerGroup = ""
	GroupGeo      LedgerGroup = "geo"
	GroupCreative LedgerGroup = "creative"
	GroupArm      LedgerGroup = "arm"
)

type AttributionAggregate struct {
	CreativeID     string  `json:"creative_id,omitempty"`
	Geo            string  `json:"geo,omitempty"`
	Visits         int64   `json:"visits"`
	Conversions    int64   `json:"conversions"`
	ConversionRate float64 `json:"conversion_rate"`
	Revenue        float64 `json:"revenue"`
}

// SpendAggregate is the spend-side counterpart of AttributionAggregate.
type SpendAggregate struct {
	CreativeID     string    `json:"creative_id,omitempty"`
	Geo            string    `json:"geo,omitempty"`
	Amount         float64   `json:"amount"`
	Impressions    int64     `json:"impressions"`
	Clicks         int64     `json:"clicks"`
	Views          int64     `json:"views"`
	LastReportedAt time.Time `json:"last_reported_at"`
}

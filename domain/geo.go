package domain

import "time"

// GeoConstraint is a hard floor/ceiling on a geography's budget share.
type GeoConstraint struct {
	CampaignID string  `gorm:"column:campaign_id;primaryKey" json:"campaign_id"`
	Geo        string  `gorm:"column:geo;primaryKey" json:"geo"`
	Floor      float64 `gorm:"column:floor;type:numeric" json:"floor"`
	Ceiling    float64 `gorm:"column:ceiling;type:numeric" json:"ceiling"`
}

func (GeoConstraint) TableName() string {
	return "geo_constraints"
}

type GeoAllocation struct {
	CampaignID string    `gorm:"column:campaign_id;primaryKey" json:"campaign_id"`
	Geo        string    `gorm:"column:geo;primaryKey" json:"geo"`
	Fraction   float64   `gorm:"column:fraction;type:numeric" json:"fraction"`
	Amount     float64   `gorm:"column:amount;type:numeric" json:"amount"`
	ComputedAt time.Time `gorm:"column:computed_at" json:"computed_at"`
}

func (GeoAllocation) TableName() string {
	return "geo_allocations"
}

// GeoMetrics are the rolling performance numbers of one geography over the
// trailing window. Zero Spend/Views means no signal yet.
type GeoMetrics struct {
	Geo         string    `json:"geo"`
	Revenue     float64   `json:"revenue"`
	Spend       float64   `json:"spend"`
	Impressions int64     `json:"impressions"`
	Clicks      int64     `json:"clicks"`
	Views       int64     `json:"views"`
	WindowEnd   time.Time `json:"window_end"`
}

func (m GeoMetrics) ROI() float64 {
	if m.Spend <= 0 {
		return 0
	}
	return m.Revenue / m.Spend
}

func (m GeoMetrics) CTR() float64 {
	if m.Impressions <= 0 {
		return 0
	}
	return float64(m.Clicks) / float64(m.Impressions)
}

// CPV is cost per view.
func (m GeoMetrics) CPV() float64 {
	if m.Views <= 0 {
		return 0
	}
	return m.Spend / float64(m.Views)
}

func (m GeoMetrics) HasSignal() bool {
	return m.Spend > 0 || m.Impressions > 0 || m.Views > 0
}

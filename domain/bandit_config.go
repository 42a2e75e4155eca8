package domain

import "time"

// OptimizerConfig holds per-campaign overrides of the engine defaults.
// CampaignID "*" is the global override row.
type OptimizerConfig struct {
	CampaignID string `json:"campaign_id" gorm:"column:campaign_id;primaryKey"`

	// bandit
	MinPulls       int     `json:"min_pulls" gorm:"column:min_pulls"`
	ColdStartBonus float64 `json:"cold_start_bonus" gorm:"column:cold_start_bonus"`
	TopK           int     `json:"top_k" gorm:"column:top_k"`

	// reinvestment
	ROIThreshold    float64 `json:"roi_threshold" gorm:"column:roi_threshold"`
	TopN            int     `json:"top_n" gorm:"column:top_n"`
	IncrementAmount float64 `json:"increment_amount" gorm:"column:increment_amount"`
	WindowHours     int     `json:"window_hours" gorm:"column:window_hours"`

	// geo score blend
	WeightROI float64 `json:"weight_roi" gorm:"column:weight_roi"`
	WeightCTR float64 `json:"weight_ctr" gorm:"column:weight_ctr"`
	WeightCPV float64 `json:"weight_cpv" gorm:"column:weight_cpv"`

	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (OptimizerConfig) TableName() string {
	return "optimizer_configs"
}

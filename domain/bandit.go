package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Arm is one (creative, geography) option of a campaign.
type Arm struct {
	CampaignID     string     `gorm:"column:campaign_id;primaryKey" json:"campaign_id"`
	CreativeID     string     `gorm:"column:creative_id;primaryKey" json:"creative_id"`
	Geo            string     `gorm:"column:geo;primaryKey" json:"geo"`
	PullCount      int64      `gorm:"column:pull_count" json:"pull_count"`
	Successes      int64      `gorm:"column:successes" json:"successes"`
	Failures       int64      `gorm:"column:failures" json:"failures"`
	SelectionCount int64      `gorm:"column:selection_count" json:"selection_count"`
	Weight         float64    `gorm:"column:weight;type:numeric" json:"weight"`
	Score          float64    `gorm:"-" json:"score"`
	Policy         string     `gorm:"-" json:"policy,omitempty"`
	LastSelectedAt *time.Time `gorm:"column:last_selected_at" json:"last_selected_at,omitempty"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Arm) TableName() string {
	return "arms"
}

func (a Arm) Key() string {
	return a.CreativeID + "|" + a.Geo
}

// ArmBudget is the money an arm receives from an increment.
type ArmBudget struct {
	CreativeID string  `json:"creative_id"`
	Geo        string  `json:"geo"`
	Weight     float64 `json:"weight"`
	Amount     float64 `json:"amount"`
}

type DecisionKind string

const (
	DecisionGeoAllocation DecisionKind = "geo_allocation"
	DecisionArmSelection  DecisionKind = "arm_selection"
	DecisionReinvestment  DecisionKind = "reinvestment"
)

// DecisionRecord is written for every automated decision so it can be
// replayed offline.
type DecisionRecord struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	CampaignID string            `gorm:"column:campaign_id;not null;index" json:"campaign_id"`
	Kind       DecisionKind      `gorm:"column:kind;not null" json:"kind"`
	Context    datatypes.JSONMap `gorm:"column:context;type:jsonb" json:"context"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (DecisionRecord) TableName() string {
	return "decision_records"
}

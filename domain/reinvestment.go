package domain

import (
	"time"

	"gorm.io/datatypes"
)

type CycleStatus string

const (
	CycleStatusEvaluating CycleStatus = "evaluating"
	CycleStatusReinvested CycleStatus = "reinvested"
	CycleStatusSkipped    CycleStatus = "skipped"
	CycleStatusFailed     CycleStatus = "failed"
	CycleStatusCancelled  CycleStatus = "cancelled"
)

// Final reports whether a cycle in this status closes its window.
func (s CycleStatus) Final() bool {
	switch s {
	case CycleStatusReinvested, CycleStatusSkipped, CycleStatusCancelled:
		return true
	}
	return false
}

type CycleTrigger string

const (
	TriggerSchedule CycleTrigger = "schedule"
	TriggerManual   CycleTrigger = "manual"
)

// ReinvestmentCycle is never deleted; (campaign_id, window_id) is its
// idempotency key.
type ReinvestmentCycle struct {
	ID                  string                      `gorm:"column:id;primaryKey" json:"id"`
	CampaignID          string                      `gorm:"column:campaign_id;not null;uniqueIndex:idx_cycle_window" json:"campaign_id"`
	WindowID            string                      `gorm:"column:window_id;not null;uniqueIndex:idx_cycle_window" json:"window_id"`
	Trigger             CycleTrigger                `gorm:"column:trigger" json:"trigger"`
	Status              CycleStatus                 `gorm:"column:status;not null" json:"status"`
	ROISnapshot         datatypes.JSONMap           `gorm:"column:roi_snapshot;type:jsonb" json:"roi_snapshot"`
	SelectedCreativeIDs datatypes.JSONSlice[string] `gorm:"column:selected_creative_ids;type:jsonb" json:"selected_creative_ids"`
	BudgetIncrement     float64                     `gorm:"column:budget_increment;type:numeric" json:"budget_increment"`
	Attempts            int                         `gorm:"column:attempts" json:"attempts"`
	FailureReason       string                      `gorm:"column:failure_reason" json:"failure_reason,omitempty"`
	TriggeredAt         time.Time                   `gorm:"column:triggered_at" json:"triggered_at"`
	CompletedAt         *time.Time                  `gorm:"column:completed_at" json:"completed_at,omitempty"`
}

func (ReinvestmentCycle) TableName() string {
	return "reinvestment_cycles"
}

// OptimizationResult is returned by a manual optimization trigger.
type OptimizationResult struct {
	CampaignID string             `json:"campaign_id"`
	Cycle      *ReinvestmentCycle `json:"cycle"`
	Duplicate  bool               `json:"duplicate"`
	Allocation []GeoAllocation    `json:"allocation,omitempty"`
	Arms       []Arm              `json:"arms,omitempty"`
	ArmBudgets []ArmBudget        `json:"arm_budgets,omitempty"`
	Warnings   []string           `json:"warnings,omitempty"`
}

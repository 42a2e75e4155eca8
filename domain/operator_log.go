package domain

import (
	"time"

	"gorm.io/datatypes"
)

type OperatorLogKind string

const (
	LogCycleFailed         OperatorLogKind = "cycle_failed"
	LogCycleEscalated      OperatorLogKind = "cycle_escalated"
	LogCycleCancelled      OperatorLogKind = "cycle_cancelled"
	LogOrphanEvent         OperatorLogKind = "orphan_event"
	LogStaleData           OperatorLogKind = "stale_data"
	LogLowConfidence       OperatorLogKind = "low_confidence"
	LogConstraintViolation OperatorLogKind = "constraint_violation"
	LogExternalCallFailure OperatorLogKind = "external_call_failure"
	LogOptimizationSkipped OperatorLogKind = "optimization_skipped"
)

// OperatorLogEntry is the operator-queryable anomaly log.
type OperatorLogEntry struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	CampaignID string            `gorm:"column:campaign_id;index" json:"campaign_id"`
	CycleID    string            `gorm:"column:cycle_id" json:"cycle_id,omitempty"`
	Kind       OperatorLogKind   `gorm:"column:kind;not null;index" json:"kind"`
	Reason     string            `gorm:"column:reason" json:"reason"`
	Details    datatypes.JSONMap `gorm:"column:details;type:jsonb" json:"details,omitempty"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (OperatorLogEntry) TableName() string {
	return "operator_logs"
}

type OperatorLogFilter struct {
	CampaignID string
	Kind       OperatorLogKind
	Limit      int
}

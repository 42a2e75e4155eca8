package postgres

import (
	"context"
	"fmt"

	"adBudgetEngine/business/bandit"
	"adBudgetEngine/business/campaign"
	"adBudgetEngine/business/reinvest"
	"adBudgetEngine/domain"

	"gorm.io/gorm"
)

const maxOperatorLogPage = 500

type OperatorLogRepository struct {
	DB *gorm.DB
}

var (
	_ campaign.OperatorLogRepository = (*OperatorLogRepository)(nil)
	_ reinvest.OperatorLogRepository = (*OperatorLogRepository)(nil)
)

func NewOperatorLogRepository(db *gorm.DB) *OperatorLogRepository {
	return &OperatorLogRepository{DB: db}
}

func (r *OperatorLogRepository) Append(ctx context.Context, entry domain.OperatorLogEntry) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	if err := r.DB.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to append operator log: %w", err)
	}
	return nil
}

// List returns newest first.
func (r *OperatorLogRepository) List(ctx context.Context, filter domain.OperatorLogFilter) ([]domain.OperatorLogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	q := r.DB.WithContext(ctx).Order("created_at DESC, id DESC")
	if filter.CampaignID != "" {
		q = q.Where("campaign_id = ?", filter.CampaignID)
	}
	if filter.Kind != "" {
		q = q.Where("kind = ?", filter.Kind)
	}
	limit := filter.Limit
	if limit <= 0 || limit > maxOperatorLogPage {
		limit = maxOperatorLogPage
	}

	var out []domain.OperatorLogEntry
	if err := q.Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list operator logs: %w", err)
	}
	return out, nil
}

type DecisionRepository struct {
	DB *gorm.DB
}

var (
	_ bandit.DecisionRepository   = (*DecisionRepository)(nil)
	_ reinvest.DecisionRepository = (*DecisionRepository)(nil)
)

func NewDecisionRepository(db *gorm.DB) *DecisionRepository {
	return &DecisionRepository{DB: db}
}

func (r *DecisionRepository) SaveDecision(ctx context.Context, rec domain.DecisionRecord) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	if err := r.DB.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to save decision record: %w", err)
	}
	return nil
}

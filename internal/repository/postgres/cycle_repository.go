package postgres

import (
	"context"
	"errors"
	"fmt"

	"adBudgetEngine/business/reinvest"
	"adBudgetEngine/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CycleRepository keeps every reinvestment cycle; rows are never deleted.
type CycleRepository struct {
	DB *gorm.DB
}

var _ reinvest.CycleRepository = (*CycleRepository)(nil)

func NewCycleRepository(db *gorm.DB) *CycleRepository {
	return &CycleRepository{DB: db}
}

func (r *CycleRepository) FindCycle(ctx context.Context, campaignID, windowID string) (domain.ReinvestmentCycle, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.ReinvestmentCycle{}, false, fmt.Errorf("context error: %w", err)
	}

	var c domain.ReinvestmentCycle
	err := r.DB.WithContext(ctx).
		Where("campaign_id = ? AND window_id = ?", campaignID, windowID).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ReinvestmentCycle{}, false, nil
	}
	if err != nil {
		return domain.ReinvestmentCycle{}, false, fmt.Errorf("failed to find reinvestment cycle: %w", err)
	}
	return c, true, nil
}

func (r *CycleRepository) CreateCycle(ctx context.Context, cycle domain.ReinvestmentCycle) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("context error: %w", err)
	}

	res := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "campaign_id"}, {Name: "window_id"}},
			DoNothing: true,
		}).
		Create(&cycle)
	if res.Error != nil {
		return false, fmt.Errorf("failed to create reinvestment cycle: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *CycleRepository) UpdateCycle(ctx context.Context, cycle domain.ReinvestmentCycle) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	res := r.DB.WithContext(ctx).
		Model(&domain.ReinvestmentCycle{}).
		Where("id = ?", cycle.ID).
		Updates(map[string]any{
			"status":                cycle.Status,
			"trigger":               cycle.Trigger,
			"roi_snapshot":          cycle.ROISnapshot,
			"selected_creative_ids": cycle.SelectedCreativeIDs,
			"budget_increment":      cycle.BudgetIncrement,
			"attempts":              cycle.Attempts,
			"failure_reason":        cycle.FailureReason,
			"completed_at":          cycle.CompletedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update reinvestment cycle: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("reinvestment cycle %s: %w", cycle.ID, domain.ErrNotFound)
	}
	return nil
}

func (r *CycleRepository) ListCycles(ctx context.Context, campaignID string, limit int) ([]domain.ReinvestmentCycle, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	q := r.DB.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("triggered_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var out []domain.ReinvestmentCycle
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list reinvestment cycles: %w", err)
	}
	return out, nil
}

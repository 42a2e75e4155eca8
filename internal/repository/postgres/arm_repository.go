package postgres

import (
	"context"
	"fmt"

	"adBudgetEngine/business/bandit"
	"adBudgetEngine/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ArmRepository struct {
	DB *gorm.DB
}

var _ bandit.ArmRepository = (*ArmRepository)(nil)

func NewArmRepository(db *gorm.DB) *ArmRepository {
	return &ArmRepository{DB: db}
}

func (r *ArmRepository) ListArms(ctx context.Context, campaignID string) ([]domain.Arm, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var arms []domain.Arm
	err := r.DB.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("creative_id, geo").
		Find(&arms).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query arms: %w", err)
	}
	return arms, nil
}

// UpsertArms writes the whole batch in one statement keyed by
// (campaign_id, creative_id, geo).
func (r *ArmRepository) UpsertArms(ctx context.Context, arms []domain.Arm) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	if len(arms) == 0 {
		return nil
	}

	if err := r.DB.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns: []clause.Column{{Name: "campaign_id"}, {Name: "creative_id"}, {Name: "geo"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"pull_count",
				"successes",
				"failures",
				"selection_count",
				"weight",
				"last_selected_at",
				"updated_at",
			}),
		},
	).Create(&arms).Error; err != nil {
		return fmt.Errorf("failed to upsert arms: %w", err)
	}

	return nil
}

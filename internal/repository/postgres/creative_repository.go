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

type CreativeRepository struct {
	DB *gorm.DB
}

var (
	_ campaign.CreativeRepository = (*CreativeRepository)(nil)
	_ reinvest.CreativeRepository = (*CreativeRepository)(nil)
	_ bandit.CreativeRepository   = (*CreativeRepository)(nil)
)

func NewCreativeRepository(db *gorm.DB) *CreativeRepository {
	return &CreativeRepository{DB: db}
}

func (r *CreativeRepository) ListCreatives(ctx context.Context, campaignID string) ([]domain.Creative, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var out []domain.Creative
	err := r.DB.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("created_at, id").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list creatives: %w", err)
	}
	return out, nil
}

func (r *CreativeRepository) SetCreativeStatus(ctx context.Context, creativeID string, status domain.CreativeStatus) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	res := r.DB.WithContext(ctx).
		Model(&domain.Creative{}).
		Where("id = ?", creativeID).
		Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("failed to update creative status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("creative %s: %w", creativeID, domain.ErrNotFound)
	}
	return nil
}

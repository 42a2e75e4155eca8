package postgres

import (
	"context"
	"fmt"

	"adBudgetEngine/business/bandit"
	"adBudgetEngine/business/campaign"
	"adBudgetEngine/business/geo"
	"adBudgetEngine/business/reinvest"
	"adBudgetEngine/domain"

	"gorm.io/gorm"
)

// GeoRepository stores per-campaign geo constraints and the current
// allocation. Both are replaced wholesale.
type GeoRepository struct {
	DB *gorm.DB
}

var (
	_ geo.ConstraintRepository      = (*GeoRepository)(nil)
	_ geo.AllocationRepository      = (*GeoRepository)(nil)
	_ reinvest.AllocationRepository = (*GeoRepository)(nil)
	_ bandit.AllocationRepository   = (*GeoRepository)(nil)
	_ campaign.AllocationRepository = (*GeoRepository)(nil)
)

func NewGeoRepository(db *gorm.DB) *GeoRepository {
	return &GeoRepository{DB: db}
}

func (r *GeoRepository) ListConstraints(ctx context.Context, campaignID string) ([]domain.GeoConstraint, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var out []domain.GeoConstraint
	err := r.DB.WithContext(ctx).Where("campaign_id = ?", campaignID).Order("geo").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list geo constraints: %w", err)
	}
	return out, nil
}

func (r *GeoRepository) ReplaceConstraints(ctx context.Context, campaignID string, constraints []domain.GeoConstraint) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("campaign_id = ?", campaignID).Delete(&domain.GeoConstraint{}).Error; err != nil {
			return fmt.Errorf("failed to clear geo constraints: %w", err)
		}
		if len(constraints) == 0 {
			return nil
		}
		rows := make([]domain.GeoConstraint, len(constraints))
		for i, c := range constraints {
			c.CampaignID = campaignID
			rows[i] = c
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to insert geo constraints: %w", err)
		}
		return nil
	})
}

func (r *GeoRepository) ListAllocations(ctx context.Context, campaignID string) ([]domain.GeoAllocation, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var out []domain.GeoAllocation
	err := r.DB.WithContext(ctx).Where("campaign_id = ?", campaignID).Order("geo").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list geo allocations: %w", err)
	}
	return out, nil
}

func (r *GeoRepository) ReplaceAllocations(ctx context.Context, campaignID string, allocations []domain.GeoAllocation) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("campaign_id = ?", campaignID).Delete(&domain.GeoAllocation{}).Error; err != nil {
			return fmt.Errorf("failed to clear geo allocations: %w", err)
		}
		if len(allocations) == 0 {
			return nil
		}
		rows := make([]domain.GeoAllocation, len(allocations))
		for i, a := range allocations {
			a.CampaignID = campaignID
			rows[i] = a
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to insert geo allocations: %w", err)
		}
		return nil
	})
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"adBudgetEngine/business/campaign"
	"adBudgetEngine/business/exclusion"
	"adBudgetEngine/business/geo"
	"adBudgetEngine/business/reinvest"
	"adBudgetEngine/domain"

	"gorm.io/gorm"
)

type CampaignRepository struct {
	DB *gorm.DB
}

var (
	_ campaign.CampaignRepository = (*CampaignRepository)(nil)
	_ reinvest.CampaignRepository = (*CampaignRepository)(nil)
	_ geo.CampaignRepository      = (*CampaignRepository)(nil)
	_ exclusion.CampaignFlagger   = (*CampaignRepository)(nil)
)

func NewCampaignRepository(db *gorm.DB) *CampaignRepository {
	return &CampaignRepository{
		DB: db,
	}
}

func (r *CampaignRepository) CreateCampaign(ctx context.Context, c domain.Campaign, creatives []domain.Creative) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&c).Error; err != nil {
			return fmt.Errorf("failed to create campaign: %w", err)
		}
		if len(creatives) == 0 {
			return nil
		}
		if err := tx.Create(&creatives).Error; err != nil {
			return fmt.Errorf("failed to create creatives: %w", err)
		}
		return nil
	})
}

func (r *CampaignRepository) GetCampaign(ctx context.Context, id string) (domain.Campaign, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Campaign{}, false, fmt.Errorf("context error: %w", err)
	}

	var c domain.Campaign
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Campaign{}, false, nil
	}
	if err != nil {
		return domain.Campaign{}, false, fmt.Errorf("failed to find campaign: %w", err)
	}

	return c, true, nil
}

// ListCampaigns returns every campaign when status is empty.
func (r *CampaignRepository) ListCampaigns(ctx context.Context, status domain.CampaignStatus) ([]domain.Campaign, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	q := r.DB.WithContext(ctx).Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var out []domain.Campaign
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	return out, nil
}

func (r *CampaignRepository) ListRunning(ctx context.Context) ([]domain.Campaign, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var out []domain.Campaign
	err := r.DB.WithContext(ctx).
		Where("status IN ?", []domain.CampaignStatus{domain.CampaignActive, domain.CampaignReinvesting}).
		Order("id").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list running campaigns: %w", err)
	}
	return out, nil
}

func (r *CampaignRepository) MarkLaunched(ctx context.Context, c domain.Campaign) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("context error: %w", err)
	}

	res := r.DB.WithContext(ctx).
		Model(&domain.Campaign{}).
		Where("id = ? AND status = ?", c.ID, domain.CampaignDraft).
		Updates(map[string]any{
			"genre":                c.Genre,
			"subgenre":             c.Subgenre,
			"confidence":           c.Confidence,
			"low_confidence":       c.LowConfidence,
			"predicted_ctr":        c.PredictedCTR,
			"status":               c.Status,
			"platform_campaign_id": c.PlatformCampaignID,
			"exclusion_stale":      c.ExclusionStale,
			"launched_at":          c.LaunchedAt,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to mark campaign launched: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *CampaignRepository) TransitionStatus(ctx context.Context, id string, from, to domain.CampaignStatus) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("context error: %w", err)
	}

	res := r.DB.WithContext(ctx).
		Model(&domain.Campaign{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, fmt.Errorf("failed to transition campaign status: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *CampaignRepository) SetCycleState(ctx context.Context, id string, state domain.CycleState) error {
	return r.updateColumn(ctx, id, "cycle_state", state)
}

func (r *CampaignRepository) SetConsecutiveFailures(ctx context.Context, id string, n int) error {
	return r.updateColumn(ctx, id, "consecutive_failures", n)
}

func (r *CampaignRepository) SetDailyBudget(ctx context.Context, id string, amount float64) error {
	return r.updateColumn(ctx, id, "daily_budget", amount)
}

func (r *CampaignRepository) SetExclusionStale(ctx context.Context, id string, stale bool) error {
	return r.updateColumn(ctx, id, "exclusion_stale", stale)
}

func (r *CampaignRepository) updateColumn(ctx context.Context, id, column string, value any) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	res := r.DB.WithContext(ctx).
		Model(&domain.Campaign{}).
		Where("id = ?", id).
		Update(column, value)
	if res.Error != nil {
		return fmt.Errorf("failed to update campaign %s: %w", column, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("campaign %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

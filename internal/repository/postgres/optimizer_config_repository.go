package postgres

import (
	"context"
	"errors"

	"adBudgetEngine/business/bandit"
	"adBudgetEngine/business/geo"
	"adBudgetEngine/business/reinvest"
	"adBudgetEngine/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OptimizerConfigRepository struct {
	DB *gorm.DB
}

var (
	_ bandit.ConfigRepository   = (*OptimizerConfigRepository)(nil)
	_ geo.ConfigRepository      = (*OptimizerConfigRepository)(nil)
	_ reinvest.ConfigRepository = (*OptimizerConfigRepository)(nil)
)

func NewOptimizerConfigRepository(db *gorm.DB) *OptimizerConfigRepository {
	return &OptimizerConfigRepository{DB: db}
}

func (r *OptimizerConfigRepository) GetConfig(ctx context.Context, campaignID string) (domain.OptimizerConfig, bool, error) {
	var cfg domain.OptimizerConfig

	err := r.DB.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.OptimizerConfig{}, false, nil
	}
	if err != nil {
		return domain.OptimizerConfig{}, false, err
	}

	return cfg, true, nil
}

func (r *OptimizerConfigRepository) UpsertConfig(ctx context.Context, cfg domain.OptimizerConfig) error {
	return r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "campaign_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"min_pulls",
				"cold_start_bonus",
				"top_k",
				"roi_threshold",
				"top_n",
				"increment_amount",
				"window_hours",
				"weight_roi",
				"weight_ctr",
				"weight_cpv",
				"updated_at",
			}),
		}).
		Create(&cfg).Error
}

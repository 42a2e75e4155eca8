package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"adBudgetEngine/business/attribution"
	"adBudgetEngine/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerRepository is the append-only attribution store: tracking codes,
// events and platform spend.
type LedgerRepository struct {
	DB *gorm.DB
}

var (
	_ attribution.CodeRepository  = (*LedgerRepository)(nil)
	_ attribution.EventRepository = (*LedgerRepository)(nil)
	_ attribution.SpendRepository = (*LedgerRepository)(nil)
)

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{DB: db}
}

// ---- Tracking codes ----

func (r *LedgerRepository) FindCode(ctx context.Context, campaignID, creativeID, geo, segmentID string) (domain.TrackingCode, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.TrackingCode{}, false, fmt.Errorf("context error: %w", err)
	}

	var tc domain.TrackingCode
	err := r.DB.WithContext(ctx).
		Where("campaign_id = ? AND creative_id = ? AND geo = ? AND segment_id = ?", campaignID, creativeID, geo, segmentID).
		First(&tc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.TrackingCode{}, false, nil
	}
	if err != nil {
		return domain.TrackingCode{}, false, fmt.Errorf("failed to find tracking code: %w", err)
	}
	return tc, true, nil
}

func (r *LedgerRepository) GetCode(ctx context.Context, code string) (domain.TrackingCode, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.TrackingCode{}, false, fmt.Errorf("context error: %w", err)
	}

	var tc domain.TrackingCode
	err := r.DB.WithContext(ctx).Where("code = ?", code).First(&tc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.TrackingCode{}, false, nil
	}
	if err != nil {
		return domain.TrackingCode{}, false, fmt.Errorf("failed to get tracking code: %w", err)
	}
	return tc, true, nil
}

func (r *LedgerRepository) InsertCode(ctx context.Context, tc domain.TrackingCode) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("context error: %w", err)
	}

	res := r.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&tc)
	if res.Error != nil {
		return false, fmt.Errorf("failed to insert tracking code: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *LedgerRepository) ListCodes(ctx context.Context, campaignID string) ([]domain.TrackingCode, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var out []domain.TrackingCode
	err := r.DB.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("created_at, code").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tracking codes: %w", err)
	}
	return out, nil
}

// ---- Events ----

func (r *LedgerRepository) InsertEvent(ctx context.Context, ev domain.AttributionEvent) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("context error: %w", err)
	}

	res := r.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&ev)
	if res.Error != nil {
		return false, fmt.Errorf("failed to insert attribution event: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *LedgerRepository) FindEventByExternalID(ctx context.Context, externalID string) (domain.AttributionEvent, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.AttributionEvent{}, false, fmt.Errorf("context error: %w", err)
	}

	var ev domain.AttributionEvent
	err := r.DB.WithContext(ctx).Where("external_id = ?", externalID).First(&ev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.AttributionEvent{}, false, nil
	}
	if err != nil {
		return domain.AttributionEvent{}, false, fmt.Errorf("failed to find attribution event: %w", err)
	}
	return ev, true, nil
}

// HasVisitBefore counts a visit at the same instant as prior.
func (r *LedgerRepository) HasVisitBefore(ctx context.Context, code string, at time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("context error: %w", err)
	}

	var n int64
	err := r.DB.WithContext(ctx).
		Model(&domain.AttributionEvent{}).
		Where("code = ? AND event_type = ? AND occurred_at <= ?", code, domain.EventVisit, at).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("failed to check prior visit: %w", err)
	}
	return n > 0, nil
}

const eventAggregateColumns = "COUNT(*) FILTER (WHERE event_type = 'visit') AS visits, " +
	"COUNT(*) FILTER (WHERE event_type = 'conversion') AS conversions, " +
	"COALESCE(SUM(revenue) FILTER (WHERE event_type = 'conversion'), 0) AS revenue"

func (r *LedgerRepository) AggregateEvents(ctx context.Context, q domain.LedgerQuery, group domain.LedgerGroup) ([]domain.AttributionAggregate, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	groupCols, err := groupColumns(group)
	if err != nil {
		return nil, err
	}

	tx := ledgerScope(r.DB.WithContext(ctx).Model(&domain.AttributionEvent{}), q, "occurred_at")
	tx = withGroup(tx, groupCols, eventAggregateColumns)

	var rows []domain.AttributionAggregate
	if err := tx.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate attribution events: %w", err)
	}
	return rows, nil
}

// ---- Spend ----

func (r *LedgerRepository) InsertSpend(ctx context.Context, entry domain.SpendEntry) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	if err := r.DB.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to insert spend entry: %w", err)
	}
	return nil
}

const spendAggregateColumns = "COALESCE(SUM(amount), 0) AS amount, " +
	"COALESCE(SUM(impressions), 0) AS impressions, " +
	"COALESCE(SUM(clicks), 0) AS clicks, " +
	"COALESCE(SUM(views), 0) AS views, " +
	"MAX(reported_at) AS last_reported_at"

type spendAggregateRow struct {
	CreativeID     string
	Geo            string
	Amount         float64
	Impressions    int64
	Clicks         int64
	Views          int64
	LastReportedAt *time.Time
}

func (r *LedgerRepository) AggregateSpend(ctx context.Context, q domain.LedgerQuery, group domain.LedgerGroup) ([]domain.SpendAggregate, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	groupCols, err := groupColumns(group)
	if err != nil {
		return nil, err
	}

	tx := ledgerScope(r.DB.WithContext(ctx).Model(&domain.SpendEntry{}), q, "reported_at")
	tx = withGroup(tx, groupCols, spendAggregateColumns)

	var rows []spendAggregateRow
	if err := tx.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate spend: %w", err)
	}

	out := make([]domain.SpendAggregate, 0, len(rows))
	for _, row := range rows {
		agg := domain.SpendAggregate{
			CreativeID:  row.CreativeID,
			Geo:         row.Geo,
			Amount:      row.Amount,
			Impressions: row.Impressions,
			Clicks:      row.Clicks,
			Views:       row.Views,
		}
		if row.LastReportedAt != nil {
			agg.LastReportedAt = row.LastReportedAt.UTC()
		}
		out = append(out, agg)
	}
	return out, nil
}

// ---- Query helpers ----

func groupColumns(group domain.LedgerGroup) ([]string, error) {
	switch group {
	case domain.GroupNone:
		return nil, nil
	case domain.GroupGeo:
		return []string{"geo"}, nil
	case domain.GroupCreative:
		return []string{"creative_id"}, nil
	case domain.GroupArm:
		return []string{"creative_id", "geo"}, nil
	}
	return nil, fmt.Errorf("%w: unknown ledger group %q", domain.ErrInvalidInput, group)
}

func withGroup(tx *gorm.DB, groupCols []string, aggregates string) *gorm.DB {
	if len(groupCols) == 0 {
		return tx.Select(aggregates)
	}
	cols := strings.Join(groupCols, ", ")
	return tx.Select(cols + ", " + aggregates).Group(cols).Order(cols)
}

// ledgerScope applies the selector and the half-open [From, To) window.
func ledgerScope(tx *gorm.DB, q domain.LedgerQuery, timeCol string) *gorm.DB {
	switch {
	case q.Code != "":
		tx = tx.Where("code = ?", q.Code)
	case q.CodePrefix != "":
		tx = tx.Where("code LIKE ?", escapeLike(q.CodePrefix)+"%")
	case q.CampaignID != "":
		tx = tx.Where("campaign_id = ?", q.CampaignID)
	}
	if !q.From.IsZero() {
		tx = tx.Where(timeCol+" >= ?", q.From)
	}
	if !q.To.IsZero() {
		tx = tx.Where(timeCol+" < ?", q.To)
	}
	return tx
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

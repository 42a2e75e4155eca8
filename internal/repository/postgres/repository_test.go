package postgres

import (
	"context"
	"testing"
	"time"

	"adBudgetEngine/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Discard,
	})
	require.NoError(t, err)

	return db, mock
}

func TestCampaignRepository_GetCampaign(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCampaignRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "campaigns" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "daily_budget", "consecutive_failures"}).
			AddRow("c1", "active", 100.0, 2))

	c, ok, err := repo.GetCampaign(context.Background(), "c1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.CampaignActive, c.Status)
	assert.Equal(t, 100.0, c.DailyBudget)
	assert.Equal(t, 2, c.ConsecutiveFailures)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignRepository_GetCampaignMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCampaignRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "campaigns" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, ok, err := repo.GetCampaign(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCampaignRepository_TransitionStatusIsCompareAndSet(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCampaignRepository(db)

	mock.ExpectExec(`UPDATE "campaigns" SET "status"=.* WHERE .*id = .* AND status = `).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "campaigns" SET "status"=.* WHERE .*id = .* AND status = `).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.TransitionStatus(context.Background(), "c1", domain.CampaignActive, domain.CampaignPaused)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.TransitionStatus(context.Background(), "c1", domain.CampaignActive, domain.CampaignPaused)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignRepository_SetDailyBudgetMissingRow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCampaignRepository(db)

	mock.ExpectExec(`UPDATE "campaigns" SET "daily_budget"=`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetDailyBudget(context.Background(), "gone", 150)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCampaignRepository_MarkLaunchedOnlyFromDraft(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCampaignRepository(db)

	mock.ExpectExec(`UPDATE "campaigns" SET .*"platform_campaign_id"=.* WHERE .*id = .* AND status = `).
		WillReturnResult(sqlmock.NewResult(0, 0))

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ok, err := repo.MarkLaunched(context.Background(), domain.Campaign{
		ID:                 "c1",
		Status:             domain.CampaignActive,
		PlatformCampaignID: "pc-1",
		LaunchedAt:         &now,
	})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCampaignRepository_CancelledContext(t *testing.T) {
	db, _ := newMockDB(t)
	repo := NewCampaignRepository(db)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.ListRunning(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGeoRepository_ReplaceAllocationsInTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGeoRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "geo_allocations" WHERE campaign_id = \$1`).
		WithArgs("c1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`INSERT INTO "geo_allocations"`).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	err := repo.ReplaceAllocations(context.Background(), "c1", []domain.GeoAllocation{
		{Geo: "ES", Fraction: 0.6, Amount: 60},
		{Geo: "FR", Fraction: 0.4, Amount: 40},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGeoRepository_ReplaceConstraintsRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGeoRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "geo_constraints"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "geo_constraints"`).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.ReplaceConstraints(context.Background(), "c1", []domain.GeoConstraint{{Geo: "ES", Floor: 0.1, Ceiling: 0.5}})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepository_InsertCodeConflict(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLedgerRepository(db)

	mock.ExpectExec(`INSERT INTO "tracking_codes" .* ON CONFLICT DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := repo.InsertCode(context.Background(), domain.TrackingCode{
		Code: "abc.es.123", CampaignID: "c1", CreativeID: "cr1", Geo: "ES",
	})
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestLedgerRepository_AggregateEventsByGeoWithPrefix(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLedgerRepository(db)

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(6 * time.Hour)

	mock.ExpectQuery(`SELECT geo, COUNT\(\*\) FILTER .* FROM "attribution_events" WHERE code LIKE \$1 AND occurred_at >= \$2 AND occurred_at < \$3 GROUP BY geo`).
		WithArgs(`ab\_c.%`, from, to).
		WillReturnRows(sqlmock.NewRows([]string{"geo", "visits", "conversions", "revenue"}).
			AddRow("ES", 10, 2, 30.0).
			AddRow("FR", 4, 0, 0.0))

	rows, err := repo.AggregateEvents(context.Background(), domain.LedgerQuery{CodePrefix: "ab_c.", From: from, To: to}, domain.GroupGeo)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ES", rows[0].Geo)
	assert.Equal(t, int64(10), rows[0].Visits)
	assert.Equal(t, int64(2), rows[0].Conversions)
	assert.Equal(t, 30.0, rows[0].Revenue)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepository_AggregateSpendNullLastReported(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLedgerRepository(db)

	mock.ExpectQuery(`SELECT COALESCE\(SUM\(amount\), 0\) AS amount.* FROM "spend_entries" WHERE campaign_id = \$1`).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"amount", "impressions", "clicks", "views", "last_reported_at"}).
			AddRow(0.0, 0, 0, 0, nil))

	rows, err := repo.AggregateSpend(context.Background(), domain.LedgerQuery{CampaignID: "c1"}, domain.GroupNone)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].LastReportedAt.IsZero())
}

func TestLedgerRepository_UnknownGroup(t *testing.T) {
	db, _ := newMockDB(t)
	repo := NewLedgerRepository(db)

	_, err := repo.AggregateSpend(context.Background(), domain.LedgerQuery{CampaignID: "c1"}, domain.LedgerGroup("segment"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLedgerRepository_HasVisitBefore(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLedgerRepository(db)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT count\(\*\) FROM "attribution_events" WHERE code = \$1 AND event_type = \$2 AND occurred_at <= \$3`).
		WithArgs("abc.es.1", domain.EventVisit, at).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	ok, err := repo.HasVisitBefore(context.Background(), "abc.es.1", at)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `a\%b\_c\\d`, escapeLike(`a%b_c\d`))
	assert.Equal(t, "abcd1234.es.", escapeLike("abcd1234.es."))
}

func TestCycleRepository_CreateCycleDuplicateWindow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCycleRepository(db)

	mock.ExpectExec(`INSERT INTO "reinvestment_cycles" .* ON CONFLICT \("campaign_id","window_id"\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "reinvestment_cycles" .* ON CONFLICT \("campaign_id","window_id"\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	cycle := domain.ReinvestmentCycle{
		ID:          "cy1",
		CampaignID:  "c1",
		WindowID:    "2026-03-01T06:00:00Z/6h0m0s",
		Status:      domain.CycleStatusEvaluating,
		TriggeredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	created, err := repo.CreateCycle(context.Background(), cycle)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.CreateCycle(context.Background(), cycle)
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCycleRepository_UpdateMissingCycle(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCycleRepository(db)

	mock.ExpectExec(`UPDATE "reinvestment_cycles" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateCycle(context.Background(), domain.ReinvestmentCycle{ID: "missing", Status: domain.CycleStatusSkipped})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestArmRepository_UpsertArms(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewArmRepository(db)

	mock.ExpectExec(`INSERT INTO "arms" .* ON CONFLICT \("campaign_id","creative_id","geo"\) DO UPDATE SET`).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := repo.UpsertArms(context.Background(), []domain.Arm{
		{CampaignID: "c1", CreativeID: "a", Geo: "ES", PullCount: 10, Successes: 2, Failures: 8, Weight: 0.6},
		{CampaignID: "c1", CreativeID: "b", Geo: "ES", Weight: 0.4},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArmRepository_UpsertNothing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewArmRepository(db)

	require.NoError(t, repo.UpsertArms(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOptimizerConfigRepository_GetConfig(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOptimizerConfigRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "optimizer_configs" WHERE campaign_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"campaign_id", "roi_threshold", "top_n"}).AddRow("*", 2.0, 3))

	cfg, ok, err := repo.GetConfig(context.Background(), "*")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2.0, cfg.ROIThreshold)
	assert.Equal(t, 3, cfg.TopN)
}

func TestOperatorLogRepository_ListFiltersAndClamps(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOperatorLogRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "operator_logs" WHERE campaign_id = \$1 AND kind = \$2 ORDER BY created_at DESC, id DESC LIMIT`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "campaign_id", "kind", "reason"}).
			AddRow(7, "c1", "cycle_failed", "platform down"))

	out, err := repo.List(context.Background(), domain.OperatorLogFilter{
		CampaignID: "c1",
		Kind:       domain.LogCycleFailed,
		Limit:      10_000,
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "platform down", out[0].Reason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

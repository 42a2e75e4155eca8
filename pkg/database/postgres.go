package database

import (
	"fmt"
	"time"

	"adBudgetEngine/domain"
	"adBudgetEngine/pkg/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func InitPostgres(cfg *config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)

	logLevel := gormlogger.Warn
	if cfg.App.Environment == "development" {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(logLevel),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return db, nil
}

// Models lists every table owned by the engine, in dependency order.
func Models() []any {
	return []any{
		&domain.Campaign{},
		&domain.Creative{},
		&domain.GeoConstraint{},
		&domain.GeoAllocation{},
		&domain.TrackingCode{},
		&domain.AttributionEvent{},
		&domain.SpendEntry{},
		&domain.Arm{},
		&domain.OptimizerConfig{},
		&domain.ReinvestmentCycle{},
		&domain.OperatorLogEntry{},
		&domain.DecisionRecord{},
	}
}

// Migrate creates or updates the schema, including the prefix index used for
// tracking-code range scans.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	stmts := []string{
		`CREATE INDEX IF NOT EXISTS idx_tracking_codes_prefix ON tracking_codes (code text_pattern_ops)`,
		`CREATE INDEX IF NOT EXISTS idx_attribution_events_code_prefix ON attribution_events (code text_pattern_ops)`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}

	return nil
}

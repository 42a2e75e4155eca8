package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App        AppConfig
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	Mailjet    MailjetConfig
	AdPlatform AdPlatformConfig
	Analyzer   AnalyzerConfig
	Ingest     IngestConfig
	Redis      RedisConfig
	Engine     EngineConfig
}

type MailjetConfig struct {
	MailjetBaseUrl           string
	MailjetBasicAuthUsername string
	MailjetBasicAuthPassword string
	MailjetSenderEmail       string
	MailjetSenderName        string
	OperatorEmail            string
}

type AppConfig struct {
	Name        string
	Version     string
	Environment string
}

type ServerConfig struct {
	Port string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type JWTConfig struct {
	SecretKey string
}

// AdPlatformConfig selects the ad platform adapter. Mode is "http" or
// "sandbox".
type AdPlatformConfig struct {
	Mode           string
	BaseURL        string
	APIKey         string
	RequestsPerSec float64
	Burst          int
	Timeout        time.Duration
}

// AnalyzerConfig points at the optional content analysis service. Empty
// BaseURL disables extraction; inline features are still classified.
type AnalyzerConfig struct {
	BaseURL string
	Timeout time.Duration
}

type IngestConfig struct {
	WebhookToken string
}

type RedisConfig struct {
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
}

// EngineConfig holds the tunables shared by the allocator, optimizer and
// scheduler. Per-campaign overrides live in optimizer_configs.
type EngineConfig struct {
	GeoMetricsWindow time.Duration
	GeoStaleAfter    time.Duration
	GeoCadence       time.Duration
	WeightROI        float64
	WeightCTR        float64
	WeightCPV        float64

	MinPulls       int
	ColdStartBonus float64
	TopK           int

	ROIThreshold        float64
	TopN                int
	IncrementAmount     float64
	ReinvestWindow      time.Duration
	MaxConsecutiveFails int

	RetryMaxTries   uint
	RetryMaxElapsed time.Duration

	SchedulerTick    time.Duration
	SchedulerWorkers int
	LeaseTTL         time.Duration

	ClassifierFloor float64
	CTRMultiplierK  float64
	BaseCTR         float64

	AggregateCacheTTL time.Duration
	ExclusionTTL      time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, errors.New("invalid redis database")
	}

	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "Ad Budget Engine"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			Environment: getEnv("APP_ENV", "development"),
		},
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "ad_budget_engine"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		JWT: JWTConfig{
			SecretKey: getEnv("JWT_SECRET", ""),
		},
		Mailjet: MailjetConfig{
			MailjetBaseUrl:           getEnv("MAILJET_BASE_URL", ""),
			MailjetBasicAuthUsername: getEnv("MAILJET_BASIC_AUTH_USERNAME", ""),
			MailjetBasicAuthPassword: getEnv("MAILJET_BASIC_AUTH_PASSWORD", ""),
			MailjetSenderEmail:       getEnv("MAILJET_SENDER_EMAIL", ""),
			MailjetSenderName:        getEnv("MAILJET_SENDER_NAME", ""),
			OperatorEmail:            getEnv("OPERATOR_ALERT_EMAIL", ""),
		},
		AdPlatform: AdPlatformConfig{
			Mode:           getEnv("AD_PLATFORM_MODE", "sandbox"),
			BaseURL:        getEnv("AD_PLATFORM_BASE_URL", ""),
			APIKey:         getEnv("AD_PLATFORM_API_KEY", ""),
			RequestsPerSec: getEnvFloat("AD_PLATFORM_RPS", 5),
			Burst:          getEnvInt("AD_PLATFORM_BURST", 5),
			Timeout:        getEnvDuration("AD_PLATFORM_TIMEOUT", 10*time.Second),
		},
		Analyzer: AnalyzerConfig{
			BaseURL: getEnv("CONTENT_ANALYZER_URL", ""),
			Timeout: getEnvDuration("CONTENT_ANALYZER_TIMEOUT", 5*time.Second),
		},
		Ingest: IngestConfig{
			WebhookToken: getEnv("INGEST_WEBHOOK_TOKEN", ""),
		},
		Redis: RedisConfig{
			RedisHost:     getEnv("REDIS_HOST", "localhost"),
			RedisPort:     getEnv("REDIS_PORT", "6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       redisDB,
		},
		Engine: EngineConfig{
			GeoMetricsWindow: getEnvDuration("GEO_METRICS_WINDOW", 7*24*time.Hour),
			GeoStaleAfter:    getEnvDuration("GEO_STALE_AFTER", 48*time.Hour),
			GeoCadence:       getEnvDuration("GEO_RECOMPUTE_CADENCE", 6*time.Hour),
			WeightROI:        getEnvFloat("GEO_WEIGHT_ROI", 0.5),
			WeightCTR:        getEnvFloat("GEO_WEIGHT_CTR", 0.3),
			WeightCPV:        getEnvFloat("GEO_WEIGHT_CPV", 0.2),

			MinPulls:       getEnvInt("BANDIT_MIN_PULLS", 20),
			ColdStartBonus: getEnvFloat("BANDIT_COLD_START_BONUS", 1.0),
			TopK:           getEnvInt("BANDIT_TOP_K", 3),

			ROIThreshold:        getEnvFloat("REINVEST_ROI_THRESHOLD", 1.5),
			TopN:                getEnvInt("REINVEST_TOP_N", 2),
			IncrementAmount:     getEnvFloat("REINVEST_INCREMENT", 50.0),
			ReinvestWindow:      getEnvDuration("REINVEST_WINDOW", 6*time.Hour),
			MaxConsecutiveFails: getEnvInt("REINVEST_MAX_FAILURES", 3),

			RetryMaxTries:   uint(getEnvInt("RETRY_MAX_TRIES", 4)),
			RetryMaxElapsed: getEnvDuration("RETRY_MAX_ELAPSED", 30*time.Second),

			SchedulerTick:    getEnvDuration("SCHEDULER_TICK", time.Minute),
			SchedulerWorkers: getEnvInt("SCHEDULER_WORKERS", 8),
			LeaseTTL:         getEnvDuration("LEASE_TTL", 2*time.Minute),

			ClassifierFloor: getEnvFloat("CLASSIFIER_CONFIDENCE_FLOOR", 0.5),
			CTRMultiplierK:  getEnvFloat("CLASSIFIER_CTR_K", 1.0),
			BaseCTR:         getEnvFloat("BASE_CTR", 0.01),

			AggregateCacheTTL: getEnvDuration("AGGREGATE_CACHE_TTL", 30*time.Second),
			ExclusionTTL:      getEnvDuration("EXCLUSION_TTL", 24*time.Hour),
		},
	}

	if cfg.JWT.SecretKey == "" {
		return nil, errors.New("missing jwt secret")
	}

	if cfg.Database.Password == "" {
		return nil, errors.New("missing database password")
	}

	if cfg.Ingest.WebhookToken == "" {
		return nil, errors.New("missing ingest webhook token")
	}

	if cfg.AdPlatform.Mode == "http" && cfg.AdPlatform.BaseURL == "" {
		return nil, errors.New("missing ad platform base url")
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return defaultVal
}

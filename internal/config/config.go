package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config represents the full application configuration surface.
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Pipeline  PipelineConfig
	Scheduler SchedulerConfig
	Notify    NotifyConfig
	Sheets    SheetsConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port string
}

// MongoDBConfig holds settings for MongoDB.
type MongoDBConfig struct {
	URI    string
	DBName string
}

// PipelineConfig carries every tunable of the analytics pipeline. The default
// unit cost is the terminal step of the cost fallback chain and must be
// positive; leaving it unset is a startup error, not a per-batch one.
type PipelineConfig struct {
	DefaultUnitCost          float64
	UrgencyHalfLifeDays      float64
	ValueLogCap              float64
	MinActionScore           float64
	TransferCostPerUnit      float64
	MarkdownUpliftMultiplier float64
	DefaultPriceMarkup       float64
	LiquidationRecoveryRate  float64
	LiquidationFixedCost     float64
	LiquidationCostPerUnit   float64
	Workers                  int
}

// SchedulerConfig holds cron-related settings for the nightly run.
type SchedulerConfig struct {
	CronSchedule string
	Timezone     string
}

// NotifyConfig configures the run-summary webhook. An empty URL disables it.
type NotifyConfig struct {
	WebhookURL string
}

// SheetsConfig configures the optional spreadsheet ingestion source. Both
// fields empty disables the source.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
	SalesRange      string
	InventoryRange  string
	ProductRange    string
}

// Enabled reports whether the sheets source is configured.
func (s SheetsConfig) Enabled() bool {
	return s.CredentialsPath != "" && s.SpreadsheetID != ""
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Ignore the returned error here; missing .env files are acceptable when
		// configuration comes from the environment directly.
		_ = godotenv.Load()
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getenvWithDefault("APP_PORT", "8080"),
		},
		MongoDB: MongoDBConfig{
			URI:    getenvWithDefault("MONGODB_URI", "mongodb://localhost:27017"),
			DBName: getenvWithDefault("MONGODB_DB_NAME", "shelfwatch"),
		},
		Pipeline: PipelineConfig{
			DefaultUnitCost:          getenvFloat("DEFAULT_UNIT_COST", 10.0),
			UrgencyHalfLifeDays:      getenvFloat("URGENCY_HALF_LIFE_DAYS", 7.0),
			ValueLogCap:              getenvFloat("VALUE_LOG_CAP", 10000.0),
			MinActionScore:           getenvFloat("MIN_ACTION_SCORE", 30.0),
			TransferCostPerUnit:      getenvFloat("TRANSFER_COST_PER_UNIT", 2.0),
			MarkdownUpliftMultiplier: getenvFloat("MARKDOWN_UPLIFT_MULTIPLIER", 2.5),
			DefaultPriceMarkup:       getenvFloat("DEFAULT_PRICE_MARKUP", 1.3),
			LiquidationRecoveryRate:  getenvFloat("LIQUIDATION_RECOVERY_RATE", 0.25),
			LiquidationFixedCost:     getenvFloat("LIQUIDATION_FIXED_COST", 50.0),
			LiquidationCostPerUnit:   getenvFloat("LIQUIDATION_COST_PER_UNIT", 1.0),
			Workers:                  getenvInt("PIPELINE_WORKERS", 8),
		},
		Scheduler: SchedulerConfig{
			CronSchedule: getenvWithDefault("PIPELINE_CRON_SCHEDULE", "30 1 * * *"),
			Timezone:     getenvWithDefault("TIMEZONE", "UTC"),
		},
		Notify: NotifyConfig{
			WebhookURL: os.Getenv("RUN_WEBHOOK_URL"),
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_DATABASE_ID"),
			SalesRange:      getenvWithDefault("SHEETS_SALES_RANGE", "Sales!A2:E"),
			InventoryRange:  getenvWithDefault("SHEETS_INVENTORY_RANGE", "Inventory!A2:G"),
			ProductRange:    getenvWithDefault("SHEETS_PRODUCT_RANGE", "Products!A2:D"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated and that
// pipeline tunables are in range.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	if c.MongoDB.URI == "" {
		return errors.New("MONGODB_URI must be provided")
	}
	if c.MongoDB.DBName == "" {
		return errors.New("MONGODB_DB_NAME must be provided")
	}

	p := c.Pipeline
	switch {
	case p.DefaultUnitCost <= 0:
		return errors.New("DEFAULT_UNIT_COST must be positive")
	case p.UrgencyHalfLifeDays <= 0:
		return errors.New("URGENCY_HALF_LIFE_DAYS must be positive")
	case p.ValueLogCap <= 0:
		return errors.New("VALUE_LOG_CAP must be positive")
	case p.MinActionScore < 0 || p.MinActionScore > 100:
		return errors.New("MIN_ACTION_SCORE must be within [0,100]")
	case p.TransferCostPerUnit < 0:
		return errors.New("TRANSFER_COST_PER_UNIT must not be negative")
	case p.MarkdownUpliftMultiplier <= 0:
		return errors.New("MARKDOWN_UPLIFT_MULTIPLIER must be positive")
	case p.DefaultPriceMarkup < 1:
		return errors.New("DEFAULT_PRICE_MARKUP must be at least 1")
	case p.LiquidationRecoveryRate <= 0 || p.LiquidationRecoveryRate > 1:
		return errors.New("LIQUIDATION_RECOVERY_RATE must be within (0,1]")
	case p.LiquidationFixedCost < 0 || p.LiquidationCostPerUnit < 0:
		return errors.New("liquidation handling costs must not be negative")
	case p.Workers < 1:
		return errors.New("PIPELINE_WORKERS must be at least 1")
	}

	if c.Scheduler.CronSchedule == "" {
		return errors.New("PIPELINE_CRON_SCHEDULE must be provided")
	}
	if c.Scheduler.Timezone == "" {
		return errors.New("TIMEZONE must be provided")
	}

	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

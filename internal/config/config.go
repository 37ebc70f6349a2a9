package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Ringba    RingbaConfig    `yaml:"ringba"`
	Sheets    SheetsConfig    `yaml:"sheets"`
	Sync      SyncConfig      `yaml:"sync"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// In a container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// RingbaConfig holds Ringba API configuration
type RingbaConfig struct {
	APIToken       string `yaml:"api_token"`
	AccountID      string `yaml:"account_id"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	ReportTimezone string `yaml:"report_timezone"`
}

// Timeout returns the configured timeout as a duration
func (c RingbaConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SheetsConfig holds Google Sheets configuration
type SheetsConfig struct {
	SpreadsheetID      string `yaml:"spreadsheet_id"`
	DailyWorksheet     string `yaml:"daily_worksheet"`
	HourlyWorksheet    string `yaml:"hourly_worksheet"`
	WebhookWorksheet   string `yaml:"webhook_worksheet"`
	ServiceAccountJSON string `yaml:"-"` // env only, never in the config file
	TimeoutSeconds     int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c SheetsConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SyncConfig holds reconciliation engine settings: the operating time zone,
// the hourly operating window, and the finalize/backfill trigger times.
type SyncConfig struct {
	Timezone          string `yaml:"timezone"`
	WindowOpenHour    int    `yaml:"window_open_hour"`
	WindowCloseHour   int    `yaml:"window_close_hour"`
	FinalizeHour      int    `yaml:"finalize_hour"`
	FinalizeMinute    int    `yaml:"finalize_minute"`
	BackfillHour      int    `yaml:"backfill_hour"`
	BackfillMinute    int    `yaml:"backfill_minute"`
	IncludeTarget     bool   `yaml:"include_target"`
	IncludeCallCounts bool   `yaml:"include_call_counts"`
}

// Location returns the operating time zone. Falls back to UTC if the
// configured zone name cannot be loaded.
func (c SyncConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SchedulerConfig holds schedule driver settings
type SchedulerConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Ringba.BaseURL == "" {
		cfg.Ringba.BaseURL = "https://api.ringba.com"
	}
	if cfg.Ringba.TimeoutSeconds == 0 {
		cfg.Ringba.TimeoutSeconds = 30
	}
	if cfg.Ringba.ReportTimezone == "" {
		cfg.Ringba.ReportTimezone = "America/Los_Angeles"
	}
	if cfg.Sheets.DailyWorksheet == "" {
		cfg.Sheets.DailyWorksheet = "Sheet1"
	}
	if cfg.Sheets.HourlyWorksheet == "" {
		cfg.Sheets.HourlyWorksheet = "Hourly"
	}
	if cfg.Sheets.WebhookWorksheet == "" {
		cfg.Sheets.WebhookWorksheet = "Webhook Log"
	}
	if cfg.Sheets.TimeoutSeconds == 0 {
		cfg.Sheets.TimeoutSeconds = 60
	}
	if cfg.Sync.Timezone == "" {
		cfg.Sync.Timezone = "America/Los_Angeles"
	}
	if cfg.Sync.WindowOpenHour == 0 {
		cfg.Sync.WindowOpenHour = 9
	}
	if cfg.Sync.WindowCloseHour == 0 {
		cfg.Sync.WindowCloseHour = 21
	}
	if cfg.Sync.FinalizeHour == 0 {
		cfg.Sync.FinalizeHour = 23
		if cfg.Sync.FinalizeMinute == 0 {
			cfg.Sync.FinalizeMinute = 30
		}
	}
	if cfg.Sync.BackfillHour == 0 {
		cfg.Sync.BackfillHour = 7
		if cfg.Sync.BackfillMinute == 0 {
			cfg.Sync.BackfillMinute = 5
		}
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in production.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("RINGBA_API_TOKEN"); v != "" {
		cfg.Ringba.APIToken = v
	}
	if v := os.Getenv("RINGBA_ACCOUNT_ID"); v != "" {
		cfg.Ringba.AccountID = v
	}
	if v := os.Getenv("RINGBA_BASE_URL"); v != "" {
		cfg.Ringba.BaseURL = v
	}
	if v := os.Getenv("SPREADSHEET_ID"); v != "" {
		cfg.Sheets.SpreadsheetID = v
	}
	if v := os.Getenv("WORKSHEET_NAME"); v != "" {
		cfg.Sheets.DailyWorksheet = v
	}
	if v := os.Getenv("HOURLY_WORKSHEET_NAME"); v != "" {
		cfg.Sheets.HourlyWorksheet = v
	}
	if v := os.Getenv("WEBHOOK_WORKSHEET_NAME"); v != "" {
		cfg.Sheets.WebhookWorksheet = v
	}
	if v := os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"); v != "" {
		cfg.Sheets.ServiceAccountJSON = v
	}
	if v := os.Getenv("SYNC_TIMEZONE"); v != "" {
		cfg.Sync.Timezone = v
	}
	if v := os.Getenv("ENABLE_SCHEDULER"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err == nil {
			cfg.Scheduler.Enabled = enabled
		}
	}

	return cfg, nil
}

// Validate checks that required identifiers and credentials are present.
// A failure here is fatal at startup: the process must not serve traffic
// with a partial configuration.
func (c *Config) Validate() error {
	if c.Ringba.APIToken == "" {
		return fmt.Errorf("RINGBA_API_TOKEN is required")
	}
	if c.Ringba.AccountID == "" {
		return fmt.Errorf("RINGBA_ACCOUNT_ID is required")
	}
	if c.Sheets.SpreadsheetID == "" {
		return fmt.Errorf("SPREADSHEET_ID is required")
	}
	if c.Sheets.ServiceAccountJSON == "" {
		return fmt.Errorf("GOOGLE_SERVICE_ACCOUNT_JSON is required")
	}
	if _, err := time.LoadLocation(c.Sync.Timezone); err != nil {
		return fmt.Errorf("invalid sync timezone %q: %w", c.Sync.Timezone, err)
	}
	return nil
}

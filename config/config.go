package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/backtester/internal/domain"
)

// Config is the full backtester configuration.
type Config struct {
	Backtest BacktestConfig        `yaml:"backtest"`
	Strategy domain.StrategyConfig `yaml:"strategy"`
	API      APIConfig             `yaml:"api"`
	Storage  StorageConfig         `yaml:"storage"`
	Log      LogConfig             `yaml:"log"`

	// Parsed from BacktestConfig during Load.
	StartDate time.Time `yaml:"-"`
	EndDate   time.Time `yaml:"-"`
}

// BacktestConfig controls the simulation run.
type BacktestConfig struct {
	StartDate         string  `yaml:"start_date"` // YYYY-MM-DD
	EndDate           string  `yaml:"end_date"`   // YYYY-MM-DD
	StartBalance      float64 `yaml:"start_balance"`
	MaxCapPctPerTrade float64 `yaml:"max_cap_pct_per_trade"`
	TPLimit           float64 `yaml:"tp_limit"`
	SLLimit           float64 `yaml:"sl_limit"`
	MinTickSeconds    int     `yaml:"min_tick_seconds"`
	AnalysisWorkers   int     `yaml:"analysis_workers"` // goroutines for the ticker scan (0 = default)
}

// APIConfig points at the data-access API.
type APIConfig struct {
	BaseURL           string `yaml:"base_url"`
	MaxAttempts       int    `yaml:"max_attempts"`
	RetryDelaySeconds int    `yaml:"retry_delay_seconds"`
}

// StorageConfig controls where historical data lives.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // path to the SQLite file, or ":memory:"
}

// LogConfig controls logging output.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load reads the YAML config and the .env file if present. Env values
// override the YAML for the keys they cover.
func Load(path string) (*Config, error) {
	// Load .env if present (missing file is fine).
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if cfg.StartDate, err = time.Parse("2006-01-02", cfg.Backtest.StartDate); err != nil {
		return nil, fmt.Errorf("config.Load: parse start_date: %w", err)
	}
	if cfg.EndDate, err = time.Parse("2006-01-02", cfg.Backtest.EndDate); err != nil {
		return nil, fmt.Errorf("config.Load: parse end_date: %w", err)
	}

	return &cfg, nil
}

// MinTickDuration returns the pacing floor as a time.Duration.
func (c *Config) MinTickDuration() time.Duration {
	return time.Duration(c.Backtest.MinTickSeconds) * time.Second
}

// RetryDelay returns the API retry delay as a time.Duration.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.API.RetryDelaySeconds) * time.Second
}

// applyEnvOverrides overrides values from environment variables when set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("API_BASE_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
}

// setDefaults backfills required values with sensible defaults.
func setDefaults(cfg *Config) {
	if cfg.Backtest.StartDate == "" {
		cfg.Backtest.StartDate = "2015-01-01"
	}
	if cfg.Backtest.EndDate == "" {
		cfg.Backtest.EndDate = time.Now().AddDate(0, 0, -1).Format("2006-01-02")
	}
	if cfg.Backtest.StartBalance <= 0 {
		cfg.Backtest.StartBalance = 15000
	}
	if cfg.Backtest.MaxCapPctPerTrade <= 0 {
		cfg.Backtest.MaxCapPctPerTrade = 0.25
	}
	if cfg.Backtest.TPLimit <= 0 {
		cfg.Backtest.TPLimit = 1.02
	}
	if cfg.Backtest.SLLimit <= 0 {
		cfg.Backtest.SLLimit = 0.99
	}
	if cfg.Backtest.MinTickSeconds <= 0 {
		cfg.Backtest.MinTickSeconds = 3
	}
	if cfg.Strategy.LookbackWeeks <= 0 {
		cfg.Strategy.LookbackWeeks = 24
	}
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = "http://127.0.0.1:8080"
	}
	if cfg.API.MaxAttempts <= 0 {
		cfg.API.MaxAttempts = 5
	}
	if cfg.API.RetryDelaySeconds <= 0 {
		cfg.API.RetryDelaySeconds = 3
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "historical_data.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

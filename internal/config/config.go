// Package config loads the gateway's startup configuration from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is used when no --config flag is given.
const DefaultConfigPath = "config.yaml"

// Balance modes.
const (
	BalanceModeMock   = "mock"
	BalanceModeRemote = "remote"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Log      LogConfig      `yaml:"log"`
	Balance  BalanceConfig  `yaml:"balance"`
	Billing  BillingConfig  `yaml:"billing"`
	Refresh  RefreshConfig  `yaml:"refresh"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig selects the SQL store. Postgres DSNs start with postgres://, anything else is SQLite.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig enables the shared balance cache when Addr is set.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// LogConfig configures logrus output and optional file rotation.
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // text or json
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// BalanceConfig selects and tunes the balance ledger.
type BalanceConfig struct {
	Mode                      string        `yaml:"mode"`
	AccountURL                string        `yaml:"account_url"`
	JWTKey                    string        `yaml:"jwt_key"`
	TokenExpiry               time.Duration `yaml:"token_expiry"`
	HTTPTimeout               time.Duration `yaml:"http_timeout"`
	CheckRealName             bool          `yaml:"check_real_name"`
	NoRealNameUsedAmountLimit float64       `yaml:"no_real_name_used_amount_limit"`
	CacheTTL                  time.Duration `yaml:"cache_ttl"`
	CacheJitter               time.Duration `yaml:"cache_jitter"`
}

// BillingConfig sizes the asynchronous consumption pool.
type BillingConfig struct {
	Workers      int           `yaml:"workers"`
	QueueSize    int           `yaml:"queue_size"`
	DrainTimeout time.Duration `yaml:"drain_timeout"`
}

// RefreshConfig sets the background reload intervals.
type RefreshConfig struct {
	Channels time.Duration `yaml:"channels"`
	Options  time.Duration `yaml:"options"`
}

// Default returns the configuration used for absent keys.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":3000",
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{DSN: "data/aiproxy.db"},
		Redis:    RedisConfig{KeyPrefix: "sealos"},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  100,
			MaxBackups: 7,
			MaxAgeDays: 30,
		},
		Balance: BalanceConfig{
			Mode:                      BalanceModeMock,
			TokenExpiry:               0,
			HTTPTimeout:               5 * time.Second,
			NoRealNameUsedAmountLimit: 1,
			CacheTTL:                  3 * time.Minute,
			CacheJitter:               5 * time.Second,
		},
		Billing: BillingConfig{
			Workers:      8,
			QueueSize:    1024,
			DrainTimeout: 30 * time.Second,
		},
		Refresh: RefreshConfig{
			Channels: time.Minute,
			Options:  30 * time.Second,
		},
	}
}

// Load reads path (a missing file yields defaults), then applies AIPROXY_* environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		path = DefaultConfigPath
	}
	data, errRead := os.ReadFile(path)
	switch {
	case errRead == nil:
		if errDecode := yaml.Unmarshal(data, &cfg); errDecode != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, errDecode)
		}
	case errors.Is(errRead, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("config: read %s: %w", path, errRead)
	}

	applyEnv(&cfg)
	if errValidate := cfg.Validate(); errValidate != nil {
		return Config{}, errValidate
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	overrides := map[string]*string{
		"AIPROXY_ADDR":        &cfg.Server.Addr,
		"AIPROXY_DSN":         &cfg.Database.DSN,
		"AIPROXY_REDIS_ADDR":  &cfg.Redis.Addr,
		"AIPROXY_ACCOUNT_URL": &cfg.Balance.AccountURL,
		"AIPROXY_JWT_KEY":     &cfg.Balance.JWTKey,
		"AIPROXY_LOG_LEVEL":   &cfg.Log.Level,
		"AIPROXY_BALANCE":     &cfg.Balance.Mode,
	}
	for key, target := range overrides {
		if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
			*target = strings.TrimSpace(value)
		}
	}
}

// Validate checks cross-field requirements.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("config: database.dsn is required")
	}
	switch c.Balance.Mode {
	case BalanceModeMock:
	case BalanceModeRemote:
		if strings.TrimSpace(c.Balance.AccountURL) == "" {
			return errors.New("config: balance.account_url is required in remote mode")
		}
		if strings.TrimSpace(c.Balance.JWTKey) == "" {
			return errors.New("config: balance.jwt_key is required in remote mode")
		}
	default:
		return fmt.Errorf("config: unknown balance.mode %q", c.Balance.Mode)
	}
	if c.Billing.Workers < 0 || c.Billing.QueueSize < 0 {
		return errors.New("config: billing.workers and billing.queue_size must not be negative")
	}
	return nil
}

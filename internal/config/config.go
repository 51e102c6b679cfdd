// Package config loads the pipeline configuration from YAML, applies
// environment overrides and validates the result.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ecodata/plantpulse/internal/alerting"
	"github.com/ecodata/plantpulse/internal/gold"
	"github.com/ecodata/plantpulse/internal/kpi"
	"github.com/ecodata/plantpulse/internal/period"
	"github.com/ecodata/plantpulse/internal/quality"
)

// Config is the root configuration tree.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Paths    PathsConfig    `yaml:"paths"`
	Period   period.Config  `yaml:"period"`
	Quality  quality.Config `yaml:"quality"`
	KPI      kpi.Config     `yaml:"kpi"`
	Alerting AlertingConfig `yaml:"alerting"`
	Silver   SilverConfig   `yaml:"silver"`
	Gold     GoldConfig     `yaml:"gold"`
	Watch    WatchConfig    `yaml:"watch"`
}

// ServerConfig tunes the HTTP API.
type ServerConfig struct {
	Port               int     `yaml:"port" validate:"min=1,max=65535"`
	RateLimitPerSecond float64 `yaml:"rate_limit_per_second" validate:"gt=0"`
	RateLimitBurst     int     `yaml:"rate_limit_burst" validate:"gt=0"`
}

// LoggingConfig tunes structured logging. An empty File logs to stderr
// only; otherwise log lines also rotate through the file.
type LoggingConfig struct {
	Level      string `yaml:"level" validate:"oneof=debug info warn error"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// PathsConfig locates the medallion layers on disk.
type PathsConfig struct {
	Bronze  string `yaml:"bronze" validate:"required"`
	Silver  string `yaml:"silver" validate:"required"`
	Gold    string `yaml:"gold" validate:"required"`
	Reports string `yaml:"reports" validate:"required"`
}

// AlertingConfig wraps detection tuning with delivery settings.
type AlertingConfig struct {
	Detection alerting.Config `yaml:"detection"`
	// RedisAddr switches cooldown state to Redis when set.
	RedisAddr    string   `yaml:"redis_addr"`
	WebhookURL   string   `yaml:"webhook_url" validate:"omitempty,url"`
	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`
}

// SilverConfig tunes the silver layer writer.
type SilverConfig struct {
	Codec string `yaml:"codec" validate:"omitempty,oneof=snappy zstd"`
}

// GoldConfig tunes the gold layer sinks.
type GoldConfig struct {
	PostgresEnabled bool                `yaml:"postgres_enabled"`
	Postgres        gold.PostgresConfig `yaml:"postgres"`
}

// WatchConfig tunes watch mode.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:               8080,
			RateLimitPerSecond: 20,
			RateLimitBurst:     40,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Paths: PathsConfig{
			Bronze:  "data/bronze",
			Silver:  "data/silver",
			Gold:    "data/gold",
			Reports: "data/reports",
		},
		Period:  period.DefaultConfig(),
		Quality: quality.DefaultConfig(),
		KPI:     kpi.DefaultConfig(),
		Alerting: AlertingConfig{
			Detection:  alerting.DefaultConfig(),
			KafkaTopic: "plantpulse.alerts",
		},
		Silver: SilverConfig{Codec: "snappy"},
		Watch:  WatchConfig{Debounce: 2 * time.Second},
	}
}

// Load reads path on top of the defaults, applies environment
// overrides and validates. An empty path skips the file entirely.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	ApplyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the tree against its struct tags plus the rules the
// tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var fields validator.ValidationErrors
		if errors.As(err, &fields) && len(fields) > 0 {
			f := fields[0]
			return fmt.Errorf("config: field %s fails %q", f.Namespace(), f.Tag())
		}
		return fmt.Errorf("config: validate: %w", err)
	}

	switch c.Period.Mode {
	case period.ModeAuto, period.ModeYesterday, period.ModeRolling24:
	default:
		return fmt.Errorf("config: unknown period mode %q", c.Period.Mode)
	}
	if c.Gold.PostgresEnabled && c.Gold.Postgres.Host == "" {
		return errors.New("config: gold postgres enabled without host")
	}
	if len(c.Alerting.KafkaBrokers) > 0 && c.Alerting.KafkaTopic == "" {
		return errors.New("config: kafka brokers set without topic")
	}
	return nil
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/brightcart-lab/recsys/internal/core/feeds"
	"github.com/brightcart-lab/recsys/internal/core/scoring"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the top-level application config plus the resolved
// feed section layout.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Scoring   ScoringConfig   `koanf:"scoring"`
	Feeds     FeedsConfig     `koanf:"feeds"`
	Recompute RecomputeConfig `koanf:"recompute"`

	// Layout is populated by Load after parsing section files.
	Layout *feeds.FileSystemRepository `koanf:"-"`
}

type ServerConfig struct {
	Port          int    `koanf:"port"`
	Host          string `koanf:"host"`
	MaxBodySizeMB int    `koanf:"max_body_size_mb"`
	Mode          string `koanf:"mode"` // debug | release
}

type DatabaseConfig struct {
	Type         string `koanf:"type"`
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

// ScoringConfig carries the counter weights. Invalid weights are
// normalized to defaults rather than rejected, so a bad override can
// never break scoring.
type ScoringConfig struct {
	Weights scoring.Weights `koanf:"weights"`
}

type FeedsConfig struct {
	// ConfigDir holds the feed section YAML files. A missing directory
	// is valid: the built-in layout applies.
	ConfigDir string `koanf:"config_dir"`
}

type RecomputeConfig struct {
	Enabled      bool   `koanf:"enabled"`
	CronInterval string `koanf:"cron_interval"` // parsed and validated on startup
	BatchSize    int    `koanf:"batch_size"`
	WorkerCount  int    `koanf:"worker_count"`
}

func (c RecomputeConfig) EffectiveCronInterval() string {
	if c.CronInterval != "" {
		return c.CronInterval
	}
	return "10m"
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.MaxBodySizeMB <= 0 {
		return fmt.Errorf("server.max_body_size_mb must be > 0")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}

	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be > 0")
	}
	if c.Database.MaxIdleConns <= 0 {
		return fmt.Errorf("database.max_idle_conns must be > 0")
	}
	if c.Database.Type != "" && c.Database.Type != "postgres" {
		return fmt.Errorf("unsupported database.type %q", c.Database.Type)
	}

	interval, err := time.ParseDuration(c.Recompute.EffectiveCronInterval())
	if err != nil {
		return fmt.Errorf("invalid recompute cron interval %q: %w", c.Recompute.EffectiveCronInterval(), err)
	}
	if interval <= 0 {
		return fmt.Errorf("recompute cron interval must be > 0")
	}
	if c.Recompute.BatchSize <= 0 {
		return fmt.Errorf("recompute.batch_size must be > 0")
	}
	if c.Recompute.WorkerCount <= 0 {
		return fmt.Errorf("recompute.worker_count must be > 0")
	}

	return nil
}

// Load parses config from file + env, validates it, then loads the feed
// section layout.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":              8080,
		"server.host":              "0.0.0.0",
		"server.max_body_size_mb":  1,
		"server.mode":              "release",
		"database.type":            "postgres",
		"database.dsn":             "postgres://localhost:5432/recsys?sslmode=disable",
		"database.max_open_conns":  25,
		"database.max_idle_conns":  25,
		"database.auto_migrate":    true,
		"scoring.weights.view":     1.0,
		"scoring.weights.cart_add": 3.0,
		"scoring.weights.purchase": 10.0,
		"feeds.config_dir":         "./config/feeds",
		"recompute.enabled":        true,
		"recompute.cron_interval":  "10m",
		"recompute.batch_size":     500,
		"recompute.worker_count":   8,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("RECSYS_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "RECSYS_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Scoring.Weights = cfg.Scoring.Weights.Normalize()

	layout, err := feeds.NewFileSystemRepository(cfg.Feeds.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load feed sections: %w", err)
	}
	cfg.Layout = layout

	return &cfg, nil
}

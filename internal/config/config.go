package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/promptpulse/promptpulse-engine/internal/pricing"
)

// Config captures the settings required to boot the engine.
type Config struct {
	Logging  LoggingConfig                   `yaml:"logging"`
	Store    StoreConfig                     `yaml:"store"`
	Alerting AlertingConfig                  `yaml:"alerting"`
	Notify   NotifyConfig                    `yaml:"notify"`
	Metrics  MetricsConfig                   `yaml:"metrics"`
	Cache    CacheConfig                     `yaml:"cache"`
	Pricing  map[string]pricing.ModelPricing `yaml:"pricing"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// AlertingConfig controls the periodic alert checker.
type AlertingConfig struct {
	WindowMinutes  int           `yaml:"windowMinutes"`
	CheckInterval  time.Duration `yaml:"checkInterval"`
	CreateDefaults bool          `yaml:"createDefaults"`
}

// NotifyConfig configures notification dispatch.
type NotifyConfig struct {
	WebhookURL string        `yaml:"webhookURL"`
	Timeout    time.Duration `yaml:"timeout"`
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	Address string `yaml:"address"`
}

// CacheConfig controls caching of repeated aggregation queries.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("PROMPTPULSE_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", JSON: false},
		Store:   StoreConfig{Path: "data/promptpulse.db"},
		Alerting: AlertingConfig{
			WindowMinutes:  60,
			CheckInterval:  15 * time.Minute,
			CreateDefaults: true,
		},
		Notify:  NotifyConfig{Timeout: 10 * time.Second},
		Metrics: MetricsConfig{Address: ":2112"},
		Cache:   CacheConfig{Enabled: true, TTL: time.Minute},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PROMPTPULSE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PROMPTPULSE_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("PROMPTPULSE_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("PROMPTPULSE_ALERT_WINDOW_MINUTES"); v != "" {
		if minutes, err := strconv.Atoi(v); err == nil {
			cfg.Alerting.WindowMinutes = minutes
		}
	}
	if v := os.Getenv("PROMPTPULSE_ALERT_CHECK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Alerting.CheckInterval = d
		}
	}
	if v := os.Getenv("PROMPTPULSE_ALERT_CREATE_DEFAULTS"); v != "" {
		cfg.Alerting.CreateDefaults = strings.EqualFold(v, "true") || strings.EqualFold(v, "1")
	}
	if v := os.Getenv("PROMPTPULSE_WEBHOOK_URL"); v != "" {
		cfg.Notify.WebhookURL = v
	}
	if v := os.Getenv("PROMPTPULSE_WEBHOOK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Notify.Timeout = d
		}
	}
	if v := os.Getenv("PROMPTPULSE_METRICS_ADDRESS"); v != "" {
		cfg.Metrics.Address = v
	}
	if v := os.Getenv("PROMPTPULSE_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = strings.EqualFold(v, "true") || strings.EqualFold(v, "1")
	}
	if v := os.Getenv("PROMPTPULSE_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.TTL = d
		}
	}
}

// Package config loads and validates the daemon's YAML configuration and
// watches it for changes.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"vol-oracle-go/infrastructure/logger"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env          string                      `yaml:"env"`
	Log          logger.Config               `yaml:"log"`
	Oracle       OracleConfig                `yaml:"oracle"`
	Feed         FeedConfig                  `yaml:"feed"`
	Metrics      MetricsConfig               `yaml:"metrics"`
	Instruments  map[string]InstrumentConfig `yaml:"instruments"`
	AdminCallers []string                    `yaml:"adminCallers"`
}

type OracleConfig struct {
	PeriodSeconds      int64 `yaml:"periodSeconds"`
	CommitPhaseSeconds int64 `yaml:"commitPhaseSeconds"`
	WindowSize         int   `yaml:"windowSize"`
}

type FeedConfig struct {
	URL string `yaml:"url"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// InstrumentConfig fixes the token decimals for premium denomination.
type InstrumentConfig struct {
	UnderlyingDecimals int `yaml:"underlyingDecimals"`
	QuoteDecimals      int `yaml:"quoteDecimals"`
}

// Load reads YAML config from path and applies basic validation.
func Load(path string) (AppConfig, error) {
	var cfg AppConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides deploy-specific fields
// from env vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("VO_FEED_URL"); v != "" {
		cfg.Feed.URL = v
	}
	if v := os.Getenv("VO_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	return cfg, Validate(cfg)
}

// Validate ensures required fields are present and internally consistent.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return ErrInvalid("env is required")
	}
	if cfg.Oracle.PeriodSeconds <= 0 {
		return ErrInvalid("oracle.periodSeconds must be > 0")
	}
	if cfg.Oracle.CommitPhaseSeconds <= 0 {
		return ErrInvalid("oracle.commitPhaseSeconds must be > 0")
	}
	if cfg.Oracle.CommitPhaseSeconds*2 > cfg.Oracle.PeriodSeconds {
		return ErrInvalid("oracle.commitPhaseSeconds must be at most half of periodSeconds")
	}
	if cfg.Oracle.WindowSize <= 0 {
		return ErrInvalid("oracle.windowSize must be > 0")
	}
	if cfg.Feed.URL == "" {
		return ErrInvalid("feed.url is required (or VO_FEED_URL)")
	}
	if len(cfg.Instruments) == 0 {
		return ErrInvalid("instruments config is required")
	}
	for name, ic := range cfg.Instruments {
		if ic.UnderlyingDecimals < 0 || ic.UnderlyingDecimals > 18 {
			return ErrInvalid(fmt.Sprintf("instrument %s underlyingDecimals must be within [0, 18]", name))
		}
		if ic.QuoteDecimals < 0 || ic.QuoteDecimals > 18 {
			return ErrInvalid(fmt.Sprintf("instrument %s quoteDecimals must be within [0, 18]", name))
		}
	}
	return nil
}

// ErrInvalid marks a config validation failure.
type ErrInvalid string

func (e ErrInvalid) Error() string { return string(e) }

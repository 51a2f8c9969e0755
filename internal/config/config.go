// Package config loads the hosted-mode server configuration from a yaml
// file, with environment variable overrides for deployment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Server  ServerSection  `yaml:"server"`
	DataAPI DataAPISection `yaml:"data_api"`
	Launch  LaunchSection  `yaml:"launch"`
	Log     LogSection     `yaml:"log"`
}

type ServerSection struct {
	ListenAddr string `yaml:"listen_addr"`
}

type DataAPISection struct {
	BaseURL   string `yaml:"base_url"`
	AuthToken string `yaml:"auth_token"`
	Timeout   string `yaml:"timeout"`
}

type LaunchSection struct {
	TokenSecret string `yaml:"token_secret"`
	TokenTTL    string `yaml:"token_ttl"`
}

type LogSection struct {
	Level string `yaml:"level"`
}

// Load reads a configuration file, applies environment overrides, fills
// defaults, and validates. Path may be empty when everything comes from
// the environment.
func Load(path string) (Config, error) {
	var cfg Config
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.Server.ListenAddr, "CONSENT_LISTEN_ADDR")
	overrideString(&cfg.DataAPI.BaseURL, "CONSENT_DATA_API_BASE_URL")
	overrideString(&cfg.DataAPI.AuthToken, "CONSENT_DATA_API_AUTH_TOKEN")
	overrideString(&cfg.DataAPI.Timeout, "CONSENT_DATA_API_TIMEOUT")
	overrideString(&cfg.Launch.TokenSecret, "CONSENT_LAUNCH_TOKEN_SECRET")
	overrideString(&cfg.Launch.TokenTTL, "CONSENT_LAUNCH_TOKEN_TTL")
	overrideString(&cfg.Log.Level, "CONSENT_LOG_LEVEL")
}

func overrideString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8090"
	}
	if cfg.DataAPI.Timeout == "" {
		cfg.DataAPI.Timeout = "30s"
	}
	if cfg.Launch.TokenTTL == "" {
		cfg.Launch.TokenTTL = "1h"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DataAPI.BaseURL) == "" {
		return fmt.Errorf("%w: data_api.base_url is required", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.Launch.TokenSecret) == "" {
		return fmt.Errorf("%w: launch.token_secret is required", ErrInvalidConfig)
	}
	if _, err := time.ParseDuration(c.DataAPI.Timeout); err != nil {
		return fmt.Errorf("%w: data_api.timeout: %v", ErrInvalidConfig, err)
	}
	if _, err := time.ParseDuration(c.Launch.TokenTTL); err != nil {
		return fmt.Errorf("%w: launch.token_ttl: %v", ErrInvalidConfig, err)
	}
	return nil
}

// DataAPITimeout returns the parsed data api timeout. Validate must have
// accepted the config first.
func (c Config) DataAPITimeout() time.Duration {
	d, _ := time.ParseDuration(c.DataAPI.Timeout)
	return d
}

// LaunchTokenTTL returns the parsed launch token lifetime.
func (c Config) LaunchTokenTTL() time.Duration {
	d, _ := time.ParseDuration(c.Launch.TokenTTL)
	return d
}

// Package config provides configuration management for the keiba betting engine.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPrefix         = "KEIBA"
	defaultConfigPath = "config/config.yaml"
)

// LoadDotEnv loads variables from .env files if present. Existing
// environment variables are never overwritten.
func LoadDotEnv(files ...string) {
	_ = godotenv.Load(files...)
}

// Load reads and parses the configuration from file and environment variables
// It expands environment variable placeholders in the YAML file (${VAR_NAME})
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = defaultConfigPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s: %w", configPath, err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v := newViper()
	if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

// LoadWithDefaults loads configuration with default values for optional fields.
// A missing file is not an error; defaults and environment variables apply.
func LoadWithDefaults(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = defaultConfigPath
	}

	v := newViper()
	setDefaults(v)

	if data, err := os.ReadFile(configPath); err == nil {
		if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "keiba")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "text")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 10)

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.sqlite_path", "data/keiba.db")

	v.SetDefault("predictor.url", "http://localhost:8000")
	v.SetDefault("predictor.timeout_seconds", 10)
	v.SetDefault("predictor.retry_attempts", 3)
	v.SetDefault("predictor.requests_per_second", 5)
	v.SetDefault("predictor.cache_ttl_seconds", 300)

	v.SetDefault("strategy.kelly_fraction", 0.25)
	v.SetDefault("strategy.max_bet_fraction", 0.25)
	v.SetDefault("strategy.max_total_stake_fraction", 0.1)
	v.SetDefault("strategy.min_expected_value", 1.2)
	v.SetDefault("strategy.high_confidence_ev", 1.5)
	v.SetDefault("strategy.max_bets_per_race", 3)
	v.SetDefault("strategy.stake_unit", 100)
	v.SetDefault("strategy.concurrency", 8)

	v.SetDefault("backtest.start_date", "2024-01-01")
	v.SetDefault("backtest.end_date", "2024-12-31")
	v.SetDefault("backtest.initial_budget", 100000)
	v.SetDefault("backtest.sample_size", 10)
	v.SetDefault("backtest.output_path", "output/backtest")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout_seconds", 15)
	v.SetDefault("server.write_timeout_seconds", 60)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.recommendations", "0 9 * * *")
	v.SetDefault("scheduler.timezone", "Asia/Tokyo")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Package config provides configuration management for the keiba betting engine.
package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	App       AppConfig       `mapstructure:"app" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage" validate:"required"`
	Predictor PredictorConfig `mapstructure:"predictor" validate:"required"`
	Strategy  StrategyConfig  `mapstructure:"strategy" validate:"required"`
	Backtest  BacktestConfig  `mapstructure:"backtest" validate:"required"`
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Secrets   SecretsConfig   `mapstructure:"secrets"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
	LogFormat   string `mapstructure:"log_format" validate:"omitempty,oneof=json text"`
}

// DatabaseConfig represents PostgreSQL connection configuration
type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Name           string `mapstructure:"name"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	SSLMode        string `mapstructure:"ssl_mode" validate:"omitempty,oneof=disable require verify-full"`
	MaxConnections int    `mapstructure:"max_connections" validate:"omitempty,gt=0"`
}

// StorageConfig selects the race and report store
type StorageConfig struct {
	Driver     string `mapstructure:"driver" validate:"required,storagedriver"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// PredictorConfig represents the prediction model service configuration
type PredictorConfig struct {
	URL               string  `mapstructure:"url" validate:"required,url"`
	APIKey            string  `mapstructure:"api_key"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds" validate:"required,gt=0"`
	RetryAttempts     int     `mapstructure:"retry_attempts" validate:"gte=0"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"required,gt=0"`
	CacheTTLSeconds   int     `mapstructure:"cache_ttl_seconds" validate:"required,gt=0"`
}

// StrategyConfig represents the staking and selection parameters
type StrategyConfig struct {
	KellyFraction         float64 `mapstructure:"kelly_fraction" validate:"required,gt=0,lte=1"`
	MaxBetFraction        float64 `mapstructure:"max_bet_fraction" validate:"required,gt=0,lt=1"`
	MaxTotalStakeFraction float64 `mapstructure:"max_total_stake_fraction" validate:"required,gt=0,lte=1"`
	MinExpectedValue      float64 `mapstructure:"min_expected_value" validate:"required,gte=1"`
	HighConfidenceEV      float64 `mapstructure:"high_confidence_ev" validate:"required,gtefield=MinExpectedValue"`
	MaxBetsPerRace        int     `mapstructure:"max_bets_per_race" validate:"required,gte=1"`
	StakeUnit             float64 `mapstructure:"stake_unit" validate:"required,gt=0"`
	Concurrency           int     `mapstructure:"concurrency" validate:"omitempty,gt=0"`
}

// BacktestConfig represents backtesting configuration
type BacktestConfig struct {
	StartDate     string  `mapstructure:"start_date" validate:"required,datetime"`
	EndDate       string  `mapstructure:"end_date" validate:"required,datetime"`
	InitialBudget float64 `mapstructure:"initial_budget" validate:"required,gt=0"`
	SampleSize    int     `mapstructure:"sample_size" validate:"gte=0"`
	OutputPath    string  `mapstructure:"output_path"`
	Persist       bool    `mapstructure:"persist"`
}

// ServerConfig represents the HTTP API configuration
type ServerConfig struct {
	Host                string   `mapstructure:"host"`
	Port                int      `mapstructure:"port" validate:"required,min=1,max=65535"`
	ReadTimeoutSeconds  int      `mapstructure:"read_timeout_seconds" validate:"gte=0"`
	WriteTimeoutSeconds int      `mapstructure:"write_timeout_seconds" validate:"gte=0"`
	AllowedOrigins      []string `mapstructure:"allowed_origins"`
}

// SchedulerConfig represents the cron schedule for daily recommendations
type SchedulerConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Recommendations string `mapstructure:"recommendations" validate:"omitempty,cron"`
	Timezone        string `mapstructure:"timezone"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// SecretsConfig locates the optional AWS Secrets Manager overlay
type SecretsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Region     string `mapstructure:"region"`
	SecretName string `mapstructure:"secret_name"`
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// UsesPostgres reports whether races and reports live in PostgreSQL
func (c *Config) UsesPostgres() bool {
	return c.Storage.Driver == "postgres"
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	return c.Database.DSN()
}

// DSN returns the PostgreSQL connection URL
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User,
		d.Password,
		d.Host,
		d.Port,
		d.Name,
		d.SSLMode,
	)
}

// ServerAddress returns the listen address for the API
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Location returns the scheduler time zone, defaulting to Asia/Tokyo
func (c *Config) Location() *time.Location {
	name := c.Scheduler.Timezone
	if name == "" {
		name = "Asia/Tokyo"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

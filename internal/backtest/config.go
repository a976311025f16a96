package backtest

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/takashi5144/keiba-3/internal/config"
	"github.com/takashi5144/keiba-3/internal/models"
)

// DateLayout is the calendar date format used by configs and reports
const DateLayout = "2006-01-02"

// DefaultSampleSize is the number of records kept in a report sample
const DefaultSampleSize = 10

// Config extends core config with backtest-specific settings
type Config struct {
	StartDate     time.Time
	EndDate       time.Time
	InitialBudget decimal.Decimal
	SampleSize    int
	OutputPath    string
	Persist       bool
}

// FromConfig converts app config to backtest config
func FromConfig(cfg *config.BacktestConfig) (Config, error) {
	if cfg == nil {
		return Config{}, fmt.Errorf("backtest config is required")
	}
	start, err := time.Parse(DateLayout, cfg.StartDate)
	if err != nil {
		return Config{}, models.NewConfigurationError("start_date", err.Error())
	}
	end, err := time.Parse(DateLayout, cfg.EndDate)
	if err != nil {
		return Config{}, models.NewConfigurationError("end_date", err.Error())
	}

	bt := Config{
		StartDate:     start,
		EndDate:       end,
		InitialBudget: decimal.NewFromFloat(cfg.InitialBudget),
		SampleSize:    cfg.SampleSize,
		OutputPath:    cfg.OutputPath,
		Persist:       cfg.Persist,
	}
	if bt.SampleSize == 0 {
		bt.SampleSize = DefaultSampleSize
	}

	return bt, bt.Validate()
}

// Validate validates backtest config parameters
func (c Config) Validate() error {
	if !c.StartDate.IsZero() && !c.EndDate.IsZero() && c.StartDate.After(c.EndDate) {
		return models.NewConfigurationError("start_date", "must not be after end_date")
	}
	if !c.InitialBudget.IsPositive() {
		return models.NewConfigurationError("initial_budget", "must be positive")
	}
	if c.SampleSize < 0 {
		return models.NewConfigurationError("sample_size", "cannot be negative")
	}
	return nil
}

// Period returns the configured date range for reports
func (c Config) Period() models.Period {
	return models.Period{
		Start: formatDate(c.StartDate),
		End:   formatDate(c.EndDate),
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

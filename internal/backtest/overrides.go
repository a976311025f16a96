package backtest

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/takashi5144/keiba-3/internal/models"
	"github.com/takashi5144/keiba-3/internal/strategy"
)

// Overrides replaces selected fields of the configured backtest and
// strategy settings for one run. Nil or empty fields keep the base value.
type Overrides struct {
	StartDate        string           `json:"start_date,omitempty"`
	EndDate          string           `json:"end_date,omitempty"`
	InitialBudget    *decimal.Decimal `json:"initial_budget,omitempty"`
	MinExpectedValue *float64         `json:"min_expected_value,omitempty"`
	HighConfidenceEV *float64         `json:"high_confidence_ev,omitempty"`
	SampleSize       *int             `json:"sample_size,omitempty"`
	Persist          *bool            `json:"persist,omitempty"`
}

// Apply returns copies of cfg and sc with the overrides applied and
// validated
func (o Overrides) Apply(cfg Config, sc strategy.Config) (Config, strategy.Config, error) {
	if o.StartDate != "" {
		t, err := time.Parse(DateLayout, o.StartDate)
		if err != nil {
			return cfg, sc, models.NewConfigurationError("start_date", err.Error())
		}
		cfg.StartDate = t
	}
	if o.EndDate != "" {
		t, err := time.Parse(DateLayout, o.EndDate)
		if err != nil {
			return cfg, sc, models.NewConfigurationError("end_date", err.Error())
		}
		cfg.EndDate = t
	}
	if o.InitialBudget != nil {
		cfg.InitialBudget = *o.InitialBudget
	}
	if o.SampleSize != nil {
		cfg.SampleSize = *o.SampleSize
	}
	if o.Persist != nil {
		cfg.Persist = *o.Persist
	}
	if o.MinExpectedValue != nil {
		sc.MinExpectedValue = *o.MinExpectedValue
	}
	if o.HighConfidenceEV != nil {
		sc.HighConfidenceEV = *o.HighConfidenceEV
	}

	if err := cfg.Validate(); err != nil {
		return cfg, sc, err
	}
	if err := sc.Validate(); err != nil {
		return cfg, sc, err
	}
	return cfg, sc, nil
}

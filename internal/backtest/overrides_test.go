package backtest

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/takashi5144/keiba-3/internal/models"
	"github.com/takashi5144/keiba-3/internal/strategy"
)

func baseConfig() Config {
	return Config{
		StartDate:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		InitialBudget: decimal.NewFromInt(100000),
		SampleSize:    DefaultSampleSize,
	}
}

func TestOverridesApply(t *testing.T) {
	budget := decimal.NewFromInt(50000)
	minEV := 1.6
	highEV := 1.8
	persist := true

	cfg, sc, err := Overrides{
		StartDate:        "2024-03-01",
		EndDate:          "2024-03-31",
		InitialBudget:    &budget,
		MinExpectedValue: &minEV,
		HighConfidenceEV: &highEV,
		Persist:          &persist,
	}.Apply(baseConfig(), strategy.DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, "2024-03-01", cfg.Period().Start)
	assert.Equal(t, "2024-03-31", cfg.Period().End)
	assert.True(t, cfg.InitialBudget.Equal(budget))
	assert.True(t, cfg.Persist)
	assert.Equal(t, 1.6, sc.MinExpectedValue)
	assert.Equal(t, 1.8, sc.HighConfidenceEV)
}

func TestOverridesEmptyKeepsBase(t *testing.T) {
	base := baseConfig()
	cfg, sc, err := Overrides{}.Apply(base, strategy.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, base, cfg)
	assert.Equal(t, strategy.DefaultConfig(), sc)
}

func TestOverridesRejectInvalid(t *testing.T) {
	zero := decimal.Zero
	lowEV := 0.9
	aboveHigh := 1.6

	tests := []struct {
		name  string
		o     Overrides
		field string
	}{
		{name: "bad start date", o: Overrides{StartDate: "2024/01/01"}, field: "start_date"},
		{name: "reversed range", o: Overrides{StartDate: "2025-01-01"}, field: "start_date"},
		{name: "zero budget", o: Overrides{InitialBudget: &zero}, field: "initial_budget"},
		{name: "min ev below one", o: Overrides{MinExpectedValue: &lowEV}, field: "min_expected_value"},
		{name: "min ev above high confidence", o: Overrides{MinExpectedValue: &aboveHigh}, field: "high_confidence_ev"},
		{name: "high confidence below min ev", o: Overrides{HighConfidenceEV: &lowEV}, field: "high_confidence_ev"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := tt.o.Apply(baseConfig(), strategy.DefaultConfig())
			var cfgErr *models.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

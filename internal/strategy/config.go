package strategy

import (
	"fmt"

	"github.com/takashi5144/keiba-3/internal/config"
	"github.com/takashi5144/keiba-3/internal/models"
)

// Config holds the risk parameters of the betting engine
type Config struct {
	KellyFraction         float64
	MaxBetFraction        float64
	MaxTotalStakeFraction float64
	MinExpectedValue      float64
	HighConfidenceEV      float64
	MaxBetsPerRace        int
	StakeUnit             float64
}

// DefaultConfig returns quarter Kelly with a 10% per-race cap
func DefaultConfig() Config {
	return Config{
		KellyFraction:         0.25,
		MaxBetFraction:        0.25,
		MaxTotalStakeFraction: 0.1,
		MinExpectedValue:      1.2,
		HighConfidenceEV:      1.5,
		MaxBetsPerRace:        3,
		StakeUnit:             100,
	}
}

// FromConfig converts app config to strategy config
func FromConfig(cfg *config.StrategyConfig) (Config, error) {
	if cfg == nil {
		return Config{}, fmt.Errorf("strategy config is required")
	}
	sc := Config{
		KellyFraction:         cfg.KellyFraction,
		MaxBetFraction:        cfg.MaxBetFraction,
		MaxTotalStakeFraction: cfg.MaxTotalStakeFraction,
		MinExpectedValue:      cfg.MinExpectedValue,
		HighConfidenceEV:      cfg.HighConfidenceEV,
		MaxBetsPerRace:        cfg.MaxBetsPerRace,
		StakeUnit:             cfg.StakeUnit,
	}
	return sc, sc.Validate()
}

// Validate rejects out-of-range values. Nothing is clamped.
func (c Config) Validate() error {
	// Comparisons are written so that NaN fails every check.
	if !(c.KellyFraction > 0 && c.KellyFraction <= 1) {
		return models.NewConfigurationError("kelly_fraction", fmt.Sprintf("%v not in (0,1]", c.KellyFraction))
	}
	if !(c.MaxBetFraction > 0 && c.MaxBetFraction < 1) {
		return models.NewConfigurationError("max_bet_fraction", fmt.Sprintf("%v not in (0,1)", c.MaxBetFraction))
	}
	if !(c.MaxTotalStakeFraction > 0 && c.MaxTotalStakeFraction <= 1) {
		return models.NewConfigurationError("max_total_stake_fraction", fmt.Sprintf("%v not in (0,1]", c.MaxTotalStakeFraction))
	}
	if !(c.MinExpectedValue >= 1) {
		return models.NewConfigurationError("min_expected_value", fmt.Sprintf("%v must be at least 1.0", c.MinExpectedValue))
	}
	if !(c.HighConfidenceEV >= c.MinExpectedValue) {
		return models.NewConfigurationError("high_confidence_ev", fmt.Sprintf("%v below min_expected_value %v", c.HighConfidenceEV, c.MinExpectedValue))
	}
	if c.MaxBetsPerRace < 1 {
		return models.NewConfigurationError("max_bets_per_race", fmt.Sprintf("%d must be at least 1", c.MaxBetsPerRace))
	}
	if !(c.StakeUnit > 0) {
		return models.NewConfigurationError("stake_unit", fmt.Sprintf("%v must be positive", c.StakeUnit))
	}
	return nil
}

package strategy

import (
	"math"

	"github.com/shopspring/decimal"
)

// Sizer computes fractional Kelly stakes for single candidates
type Sizer struct {
	kellyFraction  float64
	maxBetFraction float64
	unit           decimal.Decimal
}

// NewSizer creates a sizer from a validated config
func NewSizer(cfg Config) (*Sizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Sizer{
		kellyFraction:  cfg.KellyFraction,
		maxBetFraction: cfg.MaxBetFraction,
		unit:           decimal.NewFromFloat(cfg.StakeUnit),
	}, nil
}

// Unit returns the minimum stake increment
func (s *Sizer) Unit() decimal.Decimal {
	return s.unit
}

// KellyFraction returns the full Kelly fraction (p*b - q)/b with b = odds - 1.
// It is zero when there is no edge or the inputs are unusable.
func KellyFraction(probability, odds float64) float64 {
	if !validInputs(probability, odds) {
		return 0
	}
	b := odds - 1.0
	q := 1.0 - probability
	f := (probability*b - q) / b
	if f <= 0 {
		return 0
	}
	return f
}

// Fraction returns the share of bankroll to stake after the Kelly
// multiplier and the single-bet cap.
func (s *Sizer) Fraction(probability, odds float64) float64 {
	f := KellyFraction(probability, odds)
	if f == 0 {
		return 0
	}
	return math.Min(f*s.kellyFraction, s.maxBetFraction)
}

// Size returns the stake for one candidate, rounded down to the stake unit
func (s *Sizer) Size(probability, odds float64, bankroll decimal.Decimal) decimal.Decimal {
	if !bankroll.IsPositive() {
		return decimal.Zero
	}
	f := s.Fraction(probability, odds)
	if f <= 0 {
		return decimal.Zero
	}
	return FloorToUnit(bankroll.Mul(decimal.NewFromFloat(f)), s.unit)
}

// FloorToUnit rounds amount down to a whole multiple of unit
func FloorToUnit(amount, unit decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() || !unit.IsPositive() {
		return decimal.Zero
	}
	q, _ := amount.QuoRem(unit, 0)
	return q.Mul(unit)
}

func validInputs(probability, odds float64) bool {
	if math.IsNaN(probability) || math.IsNaN(odds) || math.IsInf(odds, 0) {
		return false
	}
	return probability > 0 && probability <= 1 && odds > 1
}

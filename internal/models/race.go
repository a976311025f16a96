package models

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// HorseCandidate represents one entrant in a race at decision time
type HorseCandidate struct {
	HorseID        string   `db:"horse_id" json:"horse_id" validate:"required"`
	HorseName      string   `db:"horse_name" json:"horse_name,omitempty"`
	PostPosition   int      `db:"post_position" json:"post_position,omitempty"`
	WinProbability *float64 `db:"win_probability" json:"win_probability"`
	Odds           *float64 `db:"odds" json:"odds"`
}

// NewCandidate builds a candidate with both probability and odds present
func NewCandidate(horseID string, probability, odds float64) HorseCandidate {
	return HorseCandidate{
		HorseID:        horseID,
		WinProbability: &probability,
		Odds:           &odds,
	}
}

// HasOdds reports whether odds are known for the candidate
func (c HorseCandidate) HasOdds() bool {
	return c.Odds != nil
}

// HasProbability reports whether the model produced a probability
func (c HorseCandidate) HasProbability() bool {
	return c.WinProbability != nil
}

// Probability returns the win probability or 0 if missing
func (c HorseCandidate) Probability() float64 {
	if c.WinProbability == nil {
		return 0
	}
	return *c.WinProbability
}

// OddsValue returns the decimal odds or 0 if missing
func (c HorseCandidate) OddsValue() float64 {
	if c.Odds == nil {
		return 0
	}
	return *c.Odds
}

// ExpectedValue returns win_probability * odds. It is computed on every
// call; ok is false when either input is missing.
func (c HorseCandidate) ExpectedValue() (ev float64, ok bool) {
	if c.WinProbability == nil || c.Odds == nil {
		return 0, false
	}
	return *c.WinProbability * *c.Odds, true
}

// ExpectedValueDecimal returns the expected value as an exact product of
// the shortest decimal forms of probability and odds.
func (c HorseCandidate) ExpectedValueDecimal() (decimal.Decimal, bool) {
	if c.WinProbability == nil || c.Odds == nil {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(*c.WinProbability).Mul(decimal.NewFromFloat(*c.Odds)), true
}

// Validate checks probability and odds ranges
func (c HorseCandidate) Validate() error {
	if c.WinProbability != nil {
		p := *c.WinProbability
		if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 || p > 1 {
			return &DataQualityError{HorseID: c.HorseID, Reason: fmt.Sprintf("win probability %v outside [0,1]", p)}
		}
	}
	if c.Odds != nil {
		o := *c.Odds
		if math.IsNaN(o) || math.IsInf(o, 0) || o <= 0 {
			return &DataQualityError{HorseID: c.HorseID, Reason: fmt.Sprintf("odds %v must be positive", o)}
		}
	}
	return nil
}

// WithProbability returns a copy of the candidate carrying probability p
func (c HorseCandidate) WithProbability(p float64) HorseCandidate {
	c.WinProbability = &p
	return c
}

// Race represents a single scheduled race and its entrants
type Race struct {
	RaceID         string           `db:"race_id" json:"race_id" validate:"required"`
	RaceDate       time.Time        `db:"race_date" json:"race_date"`
	Place          string           `db:"place" json:"place,omitempty"`
	RaceNumber     int              `db:"race_number" json:"race_number,omitempty"`
	RaceName       string           `db:"race_name" json:"race_name,omitempty"`
	Candidates     []HorseCandidate `json:"candidates"`
	ActualWinnerID string           `db:"actual_winner_id" json:"actual_winner_id,omitempty"`
}

// IsSettled checks if the race outcome is known
func (r *Race) IsSettled() bool {
	return r.ActualWinnerID != ""
}

// Settle records the winner. A settled race is never re-settled.
func (r *Race) Settle(winnerID string) error {
	if r.IsSettled() {
		return fmt.Errorf("%w: %s", ErrRaceAlreadySettled, r.RaceID)
	}
	if winnerID == "" {
		return fmt.Errorf("winner id is required")
	}
	r.ActualWinnerID = winnerID
	return nil
}

// Candidate returns the candidate with the given horse id
func (r *Race) Candidate(horseID string) (HorseCandidate, bool) {
	for _, c := range r.Candidates {
		if c.HorseID == horseID {
			return c, true
		}
	}
	return HorseCandidate{}, false
}

// CheckIntegrity reports why a race cannot be replayed in a backtest,
// or nil if it can.
func (r *Race) CheckIntegrity() error {
	if len(r.Candidates) == 0 {
		return fmt.Errorf("%w: race %s has no candidates", ErrMalformedRace, r.RaceID)
	}
	for _, c := range r.Candidates {
		if !c.HasProbability() {
			return fmt.Errorf("%w: race %s missing probability for %s", ErrMalformedRace, r.RaceID, c.HorseID)
		}
	}
	if r.IsSettled() {
		if winner, ok := r.Candidate(r.ActualWinnerID); ok && !winner.HasOdds() {
			return fmt.Errorf("%w: race %s winner %s has no odds", ErrMalformedRace, r.RaceID, winner.HorseID)
		}
	}
	return nil
}

package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Confidence grades a race-level recommendation
type Confidence string

const (
	ConfidenceNone   Confidence = "none"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// ParseConfidence converts a string into a Confidence
func ParseConfidence(s string) (Confidence, error) {
	switch Confidence(s) {
	case ConfidenceNone, ConfidenceMedium, ConfidenceHigh:
		return Confidence(s), nil
	default:
		return "", fmt.Errorf("unknown confidence %q", s)
	}
}

// String implements fmt.Stringer
func (c Confidence) String() string {
	return string(c)
}

// BettingRecommendation is a single win bet the engine suggests
type BettingRecommendation struct {
	HorseID        string          `json:"horse_id"`
	HorseName      string          `json:"horse_name,omitempty"`
	StakeAmount    decimal.Decimal `json:"stake_amount"`
	Odds           float64         `json:"odds"`
	ExpectedValue  float64         `json:"expected_value"`
	WinProbability float64         `json:"win_probability"`
}

// ExpectedReturn returns stake * probability * odds
func (r BettingRecommendation) ExpectedReturn() decimal.Decimal {
	return r.StakeAmount.Mul(decimal.NewFromFloat(r.WinProbability)).Mul(decimal.NewFromFloat(r.Odds))
}

// CandidateFlag marks a candidate excluded for data quality reasons
type CandidateFlag struct {
	HorseID string `json:"horse_id"`
	Reason  string `json:"reason"`
}

// BettingStrategyResult is the per-race output of the selector
type BettingStrategyResult struct {
	RaceID          string                  `json:"race_id"`
	Recommendations []BettingRecommendation `json:"recommendations"`
	TotalStake      decimal.Decimal         `json:"total_stake"`
	ExpectedReturn  decimal.Decimal         `json:"expected_return"`
	ExpectedProfit  decimal.Decimal         `json:"expected_profit"`
	Confidence      Confidence              `json:"confidence"`
	Flags           []CandidateFlag         `json:"flags,omitempty"`
}

// EmptyResult returns a result with no recommendations
func EmptyResult(raceID string) BettingStrategyResult {
	return BettingStrategyResult{
		RaceID:          raceID,
		Recommendations: []BettingRecommendation{},
		TotalStake:      decimal.Zero,
		ExpectedReturn:  decimal.Zero,
		ExpectedProfit:  decimal.Zero,
		Confidence:      ConfidenceNone,
	}
}

// HasBets reports whether the result recommends any stake
func (r BettingStrategyResult) HasBets() bool {
	return len(r.Recommendations) > 0
}

// BestExpectedValue returns the highest EV among the recommendations
func (r BettingStrategyResult) BestExpectedValue() float64 {
	best := 0.0
	for _, rec := range r.Recommendations {
		if rec.ExpectedValue > best {
			best = rec.ExpectedValue
		}
	}
	return best
}

// RankedCandidate is a candidate annotated with its rank by probability
type RankedCandidate struct {
	HorseCandidate
	ExpectedValue *float64 `json:"expected_value"`
	PredictedRank int      `json:"predicted_rank"`
}

// RaceRecommendation pairs a race with its strategy result for live views
type RaceRecommendation struct {
	RaceID     string                `json:"race_id"`
	RaceDate   string                `json:"race_date"`
	Place      string                `json:"place,omitempty"`
	RaceNumber int                   `json:"race_number,omitempty"`
	RaceName   string                `json:"race_name,omitempty"`
	Candidates []RankedCandidate     `json:"candidates"`
	Strategy   BettingStrategyResult `json:"betting_strategy"`
}

// RecommendationSummary aggregates a batch of race recommendations
type RecommendationSummary struct {
	TotalRaces          int             `json:"total_races"`
	RecommendedRaces    int             `json:"recommended_races"`
	TotalExpectedProfit decimal.Decimal `json:"total_expected_profit"`
}

// RecommendationBatch is the response for a day of races
type RecommendationBatch struct {
	Date    string                `json:"date,omitempty"`
	Races   []RaceRecommendation  `json:"races"`
	Summary RecommendationSummary `json:"summary"`
}

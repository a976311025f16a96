package strategy

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/takashi5144/keiba-3/internal/models"
)

func newTestSelector(t *testing.T, mutate func(*Config)) *Selector {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	selector, err := NewSelector(cfg, nil)
	require.NoError(t, err)
	return selector
}

func fullKelly(c *Config) { c.KellyFraction = 1.0 }

func TestSelectScaledToRaceCap(t *testing.T) {
	selector := newTestSelector(t, fullKelly)

	result := selector.Select("r1", []models.HorseCandidate{models.NewCandidate("h1", 0.5, 3.0)}, decimal.NewFromInt(100000))

	require.Len(t, result.Recommendations, 1)
	rec := result.Recommendations[0]
	assert.Equal(t, "h1", rec.HorseID)
	assert.InDelta(t, 1.5, rec.ExpectedValue, 1e-12)
	assert.True(t, rec.StakeAmount.Equal(decimal.NewFromInt(10000)), "got %s", rec.StakeAmount)
	assert.True(t, result.TotalStake.Equal(decimal.NewFromInt(10000)))
	assert.True(t, result.ExpectedReturn.Equal(decimal.NewFromInt(15000)), "got %s", result.ExpectedReturn)
	assert.True(t, result.ExpectedProfit.Equal(decimal.NewFromInt(5000)))
	assert.Equal(t, models.ConfidenceHigh, result.Confidence)
}

func TestSelectNoEdgeRace(t *testing.T) {
	selector := newTestSelector(t, nil)

	result := selector.Select("r1", []models.HorseCandidate{
		models.NewCandidate("h1", 0.3, 3.0),
		models.NewCandidate("h2", 0.1, 5.0),
	}, decimal.NewFromInt(100000))

	assert.Empty(t, result.Recommendations)
	assert.NotNil(t, result.Recommendations)
	assert.True(t, result.TotalStake.IsZero())
	assert.Equal(t, models.ConfidenceNone, result.Confidence)
}

func TestSelectExcludesZeroEdgeOdds(t *testing.T) {
	selector := newTestSelector(t, fullKelly)

	for _, p := range []float64{0.1, 0.5, 0.99, 1.0} {
		result := selector.Select("r1", []models.HorseCandidate{
			models.NewCandidate("even", p, 1.0),
			models.NewCandidate("short", p, 0.8),
		}, decimal.NewFromInt(100000))
		assert.Empty(t, result.Recommendations, "probability %v", p)
	}
}

func TestSelectTieBreakByHorseID(t *testing.T) {
	selector := newTestSelector(t, func(c *Config) { c.MaxBetsPerRace = 2 })

	result := selector.Select("r1", []models.HorseCandidate{
		models.NewCandidate("c", 0.4, 4.0),
		models.NewCandidate("a", 0.4, 4.0),
		models.NewCandidate("b", 0.4, 4.0),
	}, decimal.NewFromInt(100000))

	require.Len(t, result.Recommendations, 2)
	assert.Equal(t, "a", result.Recommendations[0].HorseID)
	assert.Equal(t, "b", result.Recommendations[1].HorseID)
}

func TestSelectOrdersByExpectedValueThenProbability(t *testing.T) {
	selector := newTestSelector(t, nil)

	result := selector.Select("r1", []models.HorseCandidate{
		models.NewCandidate("low", 0.3, 4.5),  // 1.35
		models.NewCandidate("long", 0.2, 8.0), // 1.6
		models.NewCandidate("fav", 0.4, 4.0),  // 1.6
		models.NewCandidate("mid", 0.25, 6.0), // 1.5
	}, decimal.NewFromInt(1000000))

	require.Len(t, result.Recommendations, 3)
	assert.Equal(t, "fav", result.Recommendations[0].HorseID)
	assert.Equal(t, "long", result.Recommendations[1].HorseID)
	assert.Equal(t, "mid", result.Recommendations[2].HorseID)
}

func TestSelectKeepsEveryBetWhenScaling(t *testing.T) {
	selector := newTestSelector(t, fullKelly)

	result := selector.Select("r1", []models.HorseCandidate{
		models.NewCandidate("h1", 0.5, 3.0),
		models.NewCandidate("h2", 0.5, 3.0),
		models.NewCandidate("h3", 0.5, 3.0),
	}, decimal.NewFromInt(100000))

	require.Len(t, result.Recommendations, 3)
	// the unit lost to flooring goes to the first selected bet
	assert.True(t, result.Recommendations[0].StakeAmount.Equal(decimal.NewFromInt(3400)), "got %s", result.Recommendations[0].StakeAmount)
	assert.True(t, result.Recommendations[1].StakeAmount.Equal(decimal.NewFromInt(3300)))
	assert.True(t, result.Recommendations[2].StakeAmount.Equal(decimal.NewFromInt(3300)))
	assert.True(t, result.TotalStake.Equal(decimal.NewFromInt(10000)))
}

func TestSelectCapOfOneUnitKeepsABet(t *testing.T) {
	selector := newTestSelector(t, fullKelly)

	result := selector.Select("r1", []models.HorseCandidate{
		models.NewCandidate("h1", 0.5, 3.0),
		models.NewCandidate("h2", 0.5, 3.0),
		models.NewCandidate("h3", 0.5, 3.0),
	}, decimal.NewFromInt(1000))

	require.Len(t, result.Recommendations, 1)
	assert.Equal(t, "h1", result.Recommendations[0].HorseID)
	assert.True(t, result.TotalStake.Equal(decimal.NewFromInt(100)), "got %s", result.TotalStake)
	assert.Equal(t, models.ConfidenceHigh, result.Confidence)
}

func TestSelectLeftoverUnitsFollowLargestRemainder(t *testing.T) {
	selector := newTestSelector(t, fullKelly)

	// sized 300 (h2) and 700 (h1) scale into a 300 cap as 90 and 210;
	// flooring leaves 0 and 200 and the spare unit goes to h2
	result := selector.Select("r1", []models.HorseCandidate{
		models.NewCandidate("h1", 0.5, 3.0),
		models.NewCandidate("h2", 0.2, 11.0),
	}, decimal.NewFromInt(3000))

	require.Len(t, result.Recommendations, 2)
	assert.Equal(t, "h2", result.Recommendations[0].HorseID)
	assert.True(t, result.Recommendations[0].StakeAmount.Equal(decimal.NewFromInt(100)), "got %s", result.Recommendations[0].StakeAmount)
	assert.True(t, result.Recommendations[1].StakeAmount.Equal(decimal.NewFromInt(200)), "got %s", result.Recommendations[1].StakeAmount)
	assert.True(t, result.TotalStake.Equal(decimal.NewFromInt(300)))
}

func TestSelectMediumConfidence(t *testing.T) {
	selector := newTestSelector(t, nil)

	result := selector.Select("r1", []models.HorseCandidate{models.NewCandidate("h1", 0.4, 3.25)}, decimal.NewFromInt(100000))

	require.Len(t, result.Recommendations, 1)
	assert.Equal(t, models.ConfidenceMedium, result.Confidence)
}

func TestSelectBudgetBelowUnit(t *testing.T) {
	selector := newTestSelector(t, nil)

	result := selector.Select("r1", []models.HorseCandidate{models.NewCandidate("h1", 0.5, 3.0)}, decimal.NewFromInt(99))

	assert.Empty(t, result.Recommendations)
	assert.Equal(t, models.ConfidenceNone, result.Confidence)
}

func TestSelectFlagsBadCandidates(t *testing.T) {
	selector := newTestSelector(t, nil)

	noOdds := models.HorseCandidate{HorseID: "no-odds"}.WithProbability(0.6)
	result := selector.Select("r1", []models.HorseCandidate{
		models.NewCandidate("negative-odds", 0.5, -2),
		models.NewCandidate("bad-prob", 1.4, 3.0),
		{HorseID: "no-prob", Odds: floatPtr(4.0)},
		noOdds,
		models.NewCandidate("good", 0.5, 3.0),
	}, decimal.NewFromInt(100000))

	require.Len(t, result.Recommendations, 1)
	assert.Equal(t, "good", result.Recommendations[0].HorseID)

	flagged := make([]string, 0, len(result.Flags))
	for _, f := range result.Flags {
		flagged = append(flagged, f.HorseID)
	}
	assert.ElementsMatch(t, []string{"negative-odds", "bad-prob", "no-prob"}, flagged)
}

func TestSelectRecomputesExpectedValue(t *testing.T) {
	selector := newTestSelector(t, nil)
	candidate := models.NewCandidate("h1", 0.3, 3.0) // EV 0.9

	before := selector.Select("r1", []models.HorseCandidate{candidate}, decimal.NewFromInt(100000))
	assert.Empty(t, before.Recommendations)

	after := selector.Select("r1", []models.HorseCandidate{candidate.WithProbability(0.5)}, decimal.NewFromInt(100000))
	require.Len(t, after.Recommendations, 1)
	assert.InDelta(t, 1.5, after.Recommendations[0].ExpectedValue, 1e-12)
}

func TestSelectExactThreshold(t *testing.T) {
	selector := newTestSelector(t, nil)

	// 0.4 * 3.0 is 1.2000000000000002 in binary floating point
	result := selector.Select("r1", []models.HorseCandidate{models.NewCandidate("h1", 0.4, 3.0)}, decimal.NewFromInt(100000))
	require.Len(t, result.Recommendations, 1)

	result = selector.Select("r1", []models.HorseCandidate{models.NewCandidate("h1", 0.3, 4.0)}, decimal.NewFromInt(100000))
	require.Len(t, result.Recommendations, 1)
}

func TestSelectRaceCapInvariant(t *testing.T) {
	selector := newTestSelector(t, func(c *Config) {
		c.KellyFraction = 1.0
		c.MaxTotalStakeFraction = 0.15
	})
	unit := decimal.NewFromInt(100)

	for _, bankroll := range []int64{99, 1000, 12345, 100000, 987654} {
		for i := 1; i <= 9; i++ {
			p := float64(i) / 10
			candidates := []models.HorseCandidate{
				models.NewCandidate("a", p, 2.5),
				models.NewCandidate("b", p/2, 6.0),
				models.NewCandidate("c", p/3, 11.0),
				models.NewCandidate("d", p, 1.7),
			}
			br := decimal.NewFromInt(bankroll)
			result := selector.Select(fmt.Sprintf("r%d", i), candidates, br)

			assert.True(t, result.TotalStake.LessThanOrEqual(selector.RaceCap(br)), "bankroll %d p %v", bankroll, p)
			assert.LessOrEqual(t, len(result.Recommendations), 3)
			sum := decimal.Zero
			for _, rec := range result.Recommendations {
				assert.True(t, rec.StakeAmount.Mod(unit).IsZero())
				assert.True(t, rec.StakeAmount.IsPositive())
				sum = sum.Add(rec.StakeAmount)
			}
			assert.True(t, sum.Equal(result.TotalStake))
		}
	}
}

func TestSelectDeterministic(t *testing.T) {
	selector := newTestSelector(t, nil)
	candidates := []models.HorseCandidate{
		models.NewCandidate("h1", 0.35, 4.2),
		models.NewCandidate("h2", 0.22, 7.1),
		models.NewCandidate("h3", 0.15, 9.9),
		models.NewCandidate("h4", 0.28, 5.0),
	}

	first := selector.Select("r1", candidates, decimal.NewFromInt(250000))
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, selector.Select("r1", candidates, decimal.NewFromInt(250000)))
	}
}

func TestRankCandidates(t *testing.T) {
	ranked := RankCandidates([]models.HorseCandidate{
		models.NewCandidate("b", 0.2, 5.0),
		{HorseID: "none"},
		models.NewCandidate("a", 0.2, 4.0),
		models.NewCandidate("fav", 0.5, 2.0),
	})

	require.Len(t, ranked, 4)
	assert.Equal(t, "fav", ranked[0].HorseID)
	assert.Equal(t, 1, ranked[0].PredictedRank)
	assert.Equal(t, "a", ranked[1].HorseID)
	assert.Equal(t, "b", ranked[2].HorseID)
	assert.Equal(t, "none", ranked[3].HorseID)
	assert.Nil(t, ranked[3].ExpectedValue)
	require.NotNil(t, ranked[0].ExpectedValue)
	assert.InDelta(t, 1.0, *ranked[0].ExpectedValue, 1e-12)
}

func floatPtr(v float64) *float64 {
	return &v
}

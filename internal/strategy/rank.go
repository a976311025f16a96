package strategy

import (
	"sort"

	"github.com/takashi5144/keiba-3/internal/models"
)

// RankCandidates orders candidates by win probability, highest first, and
// assigns a 1-based predicted rank. Candidates without a probability sort
// last. Ties break on horse id.
func RankCandidates(candidates []models.HorseCandidate) []models.RankedCandidate {
	ranked := make([]models.RankedCandidate, 0, len(candidates))
	for _, c := range candidates {
		rc := models.RankedCandidate{HorseCandidate: c}
		if ev, ok := c.ExpectedValue(); ok {
			rc.ExpectedValue = &ev
		}
		ranked = append(ranked, rc)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.HasProbability() != b.HasProbability() {
			return a.HasProbability()
		}
		if a.Probability() != b.Probability() {
			return a.Probability() > b.Probability()
		}
		return a.HorseID < b.HorseID
	})
	for i := range ranked {
		ranked[i].PredictedRank = i + 1
	}
	return ranked
}

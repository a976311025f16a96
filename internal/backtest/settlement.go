package backtest

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/takashi5144/keiba-3/internal/models"
)

// Settlement is the aggregated outcome of one race's win bets
type Settlement struct {
	TotalStake   decimal.Decimal
	Payout       decimal.Decimal
	Profit       decimal.Decimal
	Won          bool
	OddsRealized float64
	NumBets      int
	Status       models.SettlementStatus
	Err          error
}

// Settle resolves a race's recommendations against the winner. A
// recommendation wins when its horse id equals winnerID and pays
// stake * odds. A missing winner forfeits every stake.
func Settle(result models.BettingStrategyResult, winnerID string) Settlement {
	s := Settlement{
		TotalStake: result.TotalStake,
		Payout:     decimal.Zero,
		NumBets:    len(result.Recommendations),
		Status:     models.SettlementStatusSettled,
	}
	if !result.HasBets() {
		s.Status = models.SettlementStatusNoBet
		s.Profit = decimal.Zero
		return s
	}
	if winnerID == "" {
		return forfeit(s, fmt.Errorf("%w: race %s has no recorded winner", models.ErrSettlementInconsistency, result.RaceID))
	}

	for _, rec := range result.Recommendations {
		if rec.HorseID != winnerID {
			continue
		}
		s.Won = true
		s.OddsRealized = rec.Odds
		s.Payout = s.Payout.Add(rec.StakeAmount.Mul(decimal.NewFromFloat(rec.Odds)))
	}
	s.Profit = s.Payout.Sub(s.TotalStake)
	return s
}

// SettleRace settles against race.ActualWinnerID and additionally
// forfeits when the winner is not one of the race's candidates.
func SettleRace(result models.BettingStrategyResult, race *models.Race) Settlement {
	if result.HasBets() && race.IsSettled() {
		if _, ok := race.Candidate(race.ActualWinnerID); !ok {
			s := Settlement{
				TotalStake: result.TotalStake,
				NumBets:    len(result.Recommendations),
			}
			return forfeit(s, fmt.Errorf("%w: winner %s is not a candidate in race %s",
				models.ErrSettlementInconsistency, race.ActualWinnerID, race.RaceID))
		}
	}
	return Settle(result, race.ActualWinnerID)
}

func forfeit(s Settlement, err error) Settlement {
	s.Won = false
	s.OddsRealized = 0
	s.Payout = decimal.Zero
	s.Profit = s.TotalStake.Neg()
	s.Status = models.SettlementStatusForfeited
	s.Err = err
	return s
}

package strategy

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/takashi5144/keiba-3/internal/logger"
	"github.com/takashi5144/keiba-3/internal/models"
)

// Selector turns a race's candidates into a capped set of win bets.
// It holds no mutable state and is safe for concurrent use.
type Selector struct {
	config       Config
	sizer        *Sizer
	minEV        decimal.Decimal
	highEV       decimal.Decimal
	maxTotalFrac decimal.Decimal
	log          *logger.StrategyLogger
}

type eligibleCandidate struct {
	candidate models.HorseCandidate
	ev        decimal.Decimal
	stake     decimal.Decimal
}

// NewSelector creates a selector; an invalid config is rejected here
func NewSelector(cfg Config, log *logrus.Logger) (*Selector, error) {
	sizer, err := NewSizer(cfg)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Selector{
		config:       cfg,
		sizer:        sizer,
		minEV:        decimal.NewFromFloat(cfg.MinExpectedValue),
		highEV:       decimal.NewFromFloat(cfg.HighConfidenceEV),
		maxTotalFrac: decimal.NewFromFloat(cfg.MaxTotalStakeFraction),
		log:          logger.NewStrategyLogger(log),
	}, nil
}

// Config returns the selector configuration
func (s *Selector) Config() Config {
	return s.config
}

// Sizer returns the stake sizer used by the selector
func (s *Selector) Sizer() *Sizer {
	return s.sizer
}

// RaceCap returns the most that may be staked on one race
func (s *Selector) RaceCap(bankroll decimal.Decimal) decimal.Decimal {
	if !bankroll.IsPositive() {
		return decimal.Zero
	}
	return bankroll.Mul(s.maxTotalFrac)
}

// Select picks at most MaxBetsPerRace bets for a race. The total stake
// never exceeds MaxTotalStakeFraction of bankroll.
func (s *Selector) Select(raceID string, candidates []models.HorseCandidate, bankroll decimal.Decimal) models.BettingStrategyResult {
	result := models.EmptyResult(raceID)

	eligible := make([]eligibleCandidate, 0, len(candidates))
	for _, c := range candidates {
		if flag, ok := s.checkQuality(c); !ok {
			result.Flags = append(result.Flags, flag)
			s.log.LogCandidateFlagged(raceID, flag.HorseID, flag.Reason)
			continue
		}
		if !c.HasOdds() || c.OddsValue() <= 1 {
			continue
		}
		ev, _ := c.ExpectedValueDecimal()
		if ev.LessThan(s.minEV) {
			continue
		}
		eligible = append(eligible, eligibleCandidate{candidate: c, ev: ev})
	}

	sortEligible(eligible)
	if len(eligible) > s.config.MaxBetsPerRace {
		eligible = eligible[:s.config.MaxBetsPerRace]
	}

	rawTotal := decimal.Zero
	for i := range eligible {
		c := eligible[i].candidate
		eligible[i].stake = s.sizer.Size(c.Probability(), c.OddsValue(), bankroll)
		rawTotal = rawTotal.Add(eligible[i].stake)
	}

	capAmount := s.RaceCap(bankroll)
	if rawTotal.GreaterThan(capAmount) {
		s.log.LogStakeScaled(raceID, rawTotal.String(), capAmount.String())
		scaleToCap(eligible, rawTotal, capAmount, s.sizer.Unit())
	}

	bestEV := decimal.Zero
	for _, e := range eligible {
		if !e.stake.IsPositive() {
			continue
		}
		c := e.candidate
		ev, _ := c.ExpectedValue()
		rec := models.BettingRecommendation{
			HorseID:        c.HorseID,
			HorseName:      c.HorseName,
			StakeAmount:    e.stake,
			Odds:           c.OddsValue(),
			ExpectedValue:  ev,
			WinProbability: c.Probability(),
		}
		result.Recommendations = append(result.Recommendations, rec)
		result.TotalStake = result.TotalStake.Add(rec.StakeAmount)
		result.ExpectedReturn = result.ExpectedReturn.Add(rec.ExpectedReturn())
		if e.ev.GreaterThan(bestEV) {
			bestEV = e.ev
		}
	}
	result.ExpectedProfit = result.ExpectedReturn.Sub(result.TotalStake)
	result.Confidence = s.classify(len(result.Recommendations), bestEV)

	s.log.LogSelection(raceID, len(candidates), len(eligible), len(result.Recommendations), result.TotalStake.String(), result.Confidence.String())
	return result
}

func (s *Selector) classify(numBets int, bestEV decimal.Decimal) models.Confidence {
	switch {
	case numBets == 0:
		return models.ConfidenceNone
	case bestEV.GreaterThanOrEqual(s.highEV):
		return models.ConfidenceHigh
	default:
		return models.ConfidenceMedium
	}
}

func (s *Selector) checkQuality(c models.HorseCandidate) (models.CandidateFlag, bool) {
	if !c.HasProbability() {
		return models.CandidateFlag{HorseID: c.HorseID, Reason: "missing win probability"}, false
	}
	if err := c.Validate(); err != nil {
		reason := err.Error()
		var dqErr *models.DataQualityError
		if errors.As(err, &dqErr) {
			reason = dqErr.Reason
		}
		return models.CandidateFlag{HorseID: c.HorseID, Reason: reason}, false
	}
	return models.CandidateFlag{}, true
}

// sortEligible orders by EV desc, then probability desc, then horse id asc
func sortEligible(list []eligibleCandidate) {
	sort.SliceStable(list, func(i, j int) bool {
		if cmp := list[i].ev.Cmp(list[j].ev); cmp != 0 {
			return cmp > 0
		}
		pi, pj := list[i].candidate.Probability(), list[j].candidate.Probability()
		if pi != pj {
			return pi > pj
		}
		return list[i].candidate.HorseID < list[j].candidate.HorseID
	})
}

// scaleToCap multiplies every stake by capAmount/total and floors to the
// unit. Whole units lost to flooring go back one at a time, largest
// remainder first and selection order on ties, so the sum never exceeds
// the cap and a cap of at least one unit keeps at least one bet.
func scaleToCap(list []eligibleCandidate, total, capAmount, unit decimal.Decimal) {
	denom := total.Mul(unit)
	remainders := make([]decimal.Decimal, len(list))
	allocated := decimal.Zero
	for i := range list {
		if !list[i].stake.IsPositive() {
			remainders[i] = decimal.NewFromInt(-1)
			continue
		}
		q, r := list[i].stake.Mul(capAmount).QuoRem(denom, 0)
		list[i].stake = q.Mul(unit)
		remainders[i] = r
		allocated = allocated.Add(q)
	}

	capUnits, _ := capAmount.QuoRem(unit, 0)
	leftover := capUnits.Sub(allocated).IntPart()
	if leftover <= 0 {
		return
	}

	order := make([]int, len(list))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return remainders[order[a]].GreaterThan(remainders[order[b]])
	})
	for _, i := range order {
		if leftover == 0 || remainders[i].IsNegative() {
			break
		}
		list[i].stake = list[i].stake.Add(unit)
		leftover--
	}
}

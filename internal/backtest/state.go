package backtest

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/takashi5144/keiba-3/internal/models"
)

// State tracks the bankroll and settled races of one simulation
type State struct {
	Bankroll    *models.BankrollState
	Records     []models.SettlementRecord
	EquityCurve EquityCurve
}

// NewState initializes simulation state at the initial budget
func NewState(initialBudget decimal.Decimal) *State {
	state := &State{
		Bankroll:    models.NewBankrollState(initialBudget),
		Records:     []models.SettlementRecord{},
		EquityCurve: EquityCurve{},
	}
	state.RecordEquityPoint(time.Time{}, "", initialBudget)
	return state
}

// Apply books a settled race: the profit moves the bankroll and the
// record is appended with the resulting budget.
func (s *State) Apply(record models.SettlementRecord) models.SettlementRecord {
	s.Bankroll.Apply(record.Profit)
	record.BudgetAfter = s.Bankroll.CurrentBudget
	s.Records = append(s.Records, record)
	s.RecordEquityPoint(record.RaceDate, record.RaceID, record.BudgetAfter)
	return record
}

// CurrentBudget returns the running budget
func (s *State) CurrentBudget() decimal.Decimal {
	return s.Bankroll.CurrentBudget
}

// RecordEquityPoint adds an equity point to the curve
func (s *State) RecordEquityPoint(t time.Time, raceID string, budget decimal.Decimal) {
	value := budget.InexactFloat64()
	peak := s.Bankroll.PeakBudget.InexactFloat64()
	drawdown := 0.0
	if value < peak && peak > 0 {
		drawdown = (peak - value) / peak
	}

	pnl := 0.0
	if n := len(s.EquityCurve); n > 0 {
		pnl = value - s.EquityCurve[n-1].Value
	}

	s.EquityCurve = append(s.EquityCurve, EquityPoint{
		Time:     t,
		RaceID:   raceID,
		Value:    value,
		Drawdown: drawdown,
		PnL:      pnl,
	})
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SettlementStatus describes how a race was resolved in a backtest
type SettlementStatus string

const (
	SettlementStatusSettled   SettlementStatus = "settled"
	SettlementStatusNoBet     SettlementStatus = "no_bet"
	SettlementStatusSkipped   SettlementStatus = "skipped"
	SettlementStatusForfeited SettlementStatus = "forfeited"
)

// SettlementRecord is the per-race outcome of a simulated run
type SettlementRecord struct {
	RaceID       string           `db:"race_id" json:"race_id"`
	RaceDate     time.Time        `db:"race_date" json:"race_date"`
	BetAmount    decimal.Decimal  `db:"bet_amount" json:"bet_amount"`
	Won          bool             `db:"won" json:"won"`
	OddsRealized float64          `db:"odds_realized" json:"odds"`
	Payout       decimal.Decimal  `db:"payout" json:"payout"`
	Profit       decimal.Decimal  `db:"profit" json:"profit"`
	BudgetAfter  decimal.Decimal  `db:"budget_after" json:"budget_after"`
	NumBets      int              `db:"num_bets" json:"num_bets"`
	Status       SettlementStatus `db:"status" json:"status"`
	Note         string           `db:"note" json:"note,omitempty"`
}

// IsBet reports whether money was staked on the race
func (r SettlementRecord) IsBet() bool {
	return r.BetAmount.IsPositive()
}

// BankrollState tracks the running budget of one simulation
type BankrollState struct {
	CurrentBudget decimal.Decimal `json:"current_budget"`
	PeakBudget    decimal.Decimal `json:"peak_budget"`
	RaceIndex     int             `json:"race_index"`
}

// NewBankrollState starts a bankroll at the initial budget
func NewBankrollState(initial decimal.Decimal) *BankrollState {
	return &BankrollState{
		CurrentBudget: initial,
		PeakBudget:    initial,
	}
}

// Apply adds profit to the budget, flooring at zero, and advances the race index
func (b *BankrollState) Apply(profit decimal.Decimal) {
	next := b.CurrentBudget.Add(profit)
	if next.IsNegative() {
		next = decimal.Zero
	}
	b.CurrentBudget = next
	if next.GreaterThan(b.PeakBudget) {
		b.PeakBudget = next
	}
	b.RaceIndex++
}

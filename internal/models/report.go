package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Period is an inclusive date range in YYYY-MM-DD form
type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// BacktestReport summarises a completed backtest run
type BacktestReport struct {
	RunID          uuid.UUID          `db:"id" json:"run_id"`
	Period         Period             `json:"period"`
	InitialBudget  decimal.Decimal    `db:"initial_budget" json:"initial_budget"`
	FinalBudget    decimal.Decimal    `db:"final_budget" json:"final_budget"`
	Profit         decimal.Decimal    `db:"profit" json:"profit"`
	ROI            float64            `db:"roi" json:"roi"`
	TotalBets      int                `db:"total_bets" json:"total_bets"`
	TotalWins      int                `db:"total_wins" json:"total_wins"`
	WinRate        float64            `db:"win_rate" json:"win_rate"`
	TotalBetAmount decimal.Decimal    `db:"total_bet_amount" json:"total_bet_amount"`
	TotalReturn    decimal.Decimal    `db:"total_return" json:"total_return"`
	NumRaces       int                `db:"num_races" json:"num_races"`
	NumSkipped     int                `db:"num_skipped" json:"num_skipped"`
	NumForfeited   int                `db:"num_forfeited" json:"num_forfeited"`
	MaxDrawdown    float64            `db:"max_drawdown" json:"max_drawdown"`
	ResultsSample  []SettlementRecord `json:"results_sample"`
	GeneratedAt    time.Time          `db:"generated_at" json:"generated_at"`
}

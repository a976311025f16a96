package backtest

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/takashi5144/keiba-3/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Summarize aggregates settlement records into a report. sampleSize < 0
// selects the default; the sample is the first records in order.
func Summarize(records []models.SettlementRecord, initialBudget, finalBudget decimal.Decimal, period models.Period, sampleSize int) models.BacktestReport {
	report := models.BacktestReport{
		RunID:          uuid.New(),
		Period:         period,
		InitialBudget:  initialBudget,
		FinalBudget:    finalBudget,
		Profit:         finalBudget.Sub(initialBudget),
		TotalBetAmount: decimal.Zero,
		TotalReturn:    decimal.Zero,
		NumRaces:       len(records),
		GeneratedAt:    time.Now().UTC(),
	}

	for _, r := range records {
		switch r.Status {
		case models.SettlementStatusSkipped:
			report.NumSkipped++
		case models.SettlementStatusForfeited:
			report.NumForfeited++
		}
		if !r.IsBet() {
			continue
		}
		report.TotalBets++
		if r.Won {
			report.TotalWins++
		}
		report.TotalBetAmount = report.TotalBetAmount.Add(r.BetAmount)
		report.TotalReturn = report.TotalReturn.Add(r.Payout)
	}

	report.WinRate = calculateWinRate(report.TotalWins, report.TotalBets)
	report.ROI = calculateROI(initialBudget, finalBudget)
	report.MaxDrawdown = budgetCurve(initialBudget, records).MaxDrawdown() * 100
	report.ResultsSample = sampleRecords(records, sampleSize)
	return report
}

// SummarizeResult summarizes a simulator result
func SummarizeResult(result *Result, period models.Period, sampleSize int) models.BacktestReport {
	return Summarize(result.Records, result.InitialBudget, result.FinalBudget, period, sampleSize)
}

// ReportToJSON exports a report to indented JSON
func ReportToJSON(report models.BacktestReport) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func calculateWinRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total) * 100
}

func calculateROI(initial, final decimal.Decimal) float64 {
	if initial.IsZero() {
		return 0
	}
	return final.Sub(initial).Div(initial).Mul(hundred).InexactFloat64()
}

func budgetCurve(initial decimal.Decimal, records []models.SettlementRecord) EquityCurve {
	curve := make(EquityCurve, 0, len(records)+1)
	curve = append(curve, EquityPoint{Value: initial.InexactFloat64()})
	for _, r := range records {
		curve = append(curve, EquityPoint{Time: r.RaceDate, RaceID: r.RaceID, Value: r.BudgetAfter.InexactFloat64()})
	}
	return curve
}

func sampleRecords(records []models.SettlementRecord, n int) []models.SettlementRecord {
	if n < 0 {
		n = DefaultSampleSize
	}
	if n > len(records) {
		n = len(records)
	}
	sample := make([]models.SettlementRecord, n)
	copy(sample, records[:n])
	return sample
}

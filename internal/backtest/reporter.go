package backtest

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/takashi5144/keiba-3/internal/models"
)

// GenerateConsoleReport formats a report for terminal output
func GenerateConsoleReport(report models.BacktestReport) string {
	var builder strings.Builder
	builder.WriteString("Backtest Report\n")
	builder.WriteString("================\n")
	builder.WriteString(fmt.Sprintf("Run ID: %s\n", report.RunID))
	builder.WriteString(fmt.Sprintf("Period: %s to %s\n", report.Period.Start, report.Period.End))
	builder.WriteString(fmt.Sprintf("Initial Budget: %s\n", report.InitialBudget.StringFixed(0)))
	builder.WriteString(fmt.Sprintf("Final Budget: %s\n", report.FinalBudget.StringFixed(0)))
	builder.WriteString(fmt.Sprintf("Profit: %s\n", report.Profit.StringFixed(0)))
	builder.WriteString(fmt.Sprintf("ROI: %.2f%%\n", report.ROI))
	builder.WriteString(fmt.Sprintf("Races: %d (skipped %d, forfeited %d)\n", report.NumRaces, report.NumSkipped, report.NumForfeited))
	builder.WriteString(fmt.Sprintf("Bets: %d  Wins: %d  Win Rate: %.2f%%\n", report.TotalBets, report.TotalWins, report.WinRate))
	builder.WriteString(fmt.Sprintf("Total Staked: %s  Total Return: %s\n", report.TotalBetAmount.StringFixed(0), report.TotalReturn.StringFixed(0)))
	builder.WriteString(fmt.Sprintf("Max Drawdown: %.2f%%\n", report.MaxDrawdown))
	return builder.String()
}

// GenerateJSONExport writes the full report as JSON
func GenerateJSONExport(report models.BacktestReport, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	data, err := ReportToJSON(report)
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, []byte(data), 0o644)
}

// GenerateCSVExport exports settlement records for spreadsheets
func GenerateCSVExport(records []models.SettlementRecord, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(recordCSVHeader); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.RaceID,
			formatDate(r.RaceDate),
			string(r.Status),
			strconv.Itoa(r.NumBets),
			r.BetAmount.String(),
			strconv.FormatBool(r.Won),
			formatFloat(r.OddsRealized),
			r.Payout.String(),
			r.Profit.String(),
			r.BudgetAfter.String(),
			r.Note,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

var recordCSVHeader = []string{
	"race_id", "race_date", "status", "num_bets", "bet_amount",
	"won", "odds", "payout", "profit", "budget_after", "note",
}

// WriteOutputs writes the JSON report, record CSV and equity curve CSV
// into dir.
func WriteOutputs(report models.BacktestReport, result *Result, dir string) error {
	if err := GenerateJSONExport(report, filepath.Join(dir, "report.json")); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := GenerateCSVExport(result.Records, filepath.Join(dir, "records.csv")); err != nil {
		return fmt.Errorf("failed to write records: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "equity_curve.csv"), []byte(result.EquityCurve.ToCSV()), 0o644); err != nil {
		return fmt.Errorf("failed to write equity curve: %w", err)
	}
	return nil
}

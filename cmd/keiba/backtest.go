package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/takashi5144/keiba-3/internal/backtest"
	"github.com/takashi5144/keiba-3/internal/service"
	"github.com/takashi5144/keiba-3/internal/strategy"
)

var backtestFlags struct {
	startDate     string
	endDate       string
	initialBudget float64
	minEV         float64
	highEV        float64
	sampleSize    int
	output        string
	persist       bool
}

func init() {
	f := backtestCmd.Flags()
	f.StringVar(&backtestFlags.startDate, "start-date", "", "Override start date (YYYY-MM-DD)")
	f.StringVar(&backtestFlags.endDate, "end-date", "", "Override end date (YYYY-MM-DD)")
	f.Float64Var(&backtestFlags.initialBudget, "initial-budget", 0, "Override the starting bankroll")
	f.Float64Var(&backtestFlags.minEV, "min-ev", 0, "Override the minimum expected value")
	f.Float64Var(&backtestFlags.highEV, "high-ev", 0, "Override the expected value marking high confidence")
	f.IntVar(&backtestFlags.sampleSize, "sample-size", 0, "Number of settlement records kept in the report sample")
	f.StringVar(&backtestFlags.output, "output", "", "Directory for report.json, records.csv and equity_curve.csv")
	f.BoolVar(&backtestFlags.persist, "persist", false, "Store the report in the configured database")
}

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay the strategy over historical races",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runBacktest(ctx, cmd)
	},
}

func runBacktest(ctx context.Context, cmd *cobra.Command) error {
	base, err := backtest.FromConfig(&cfg.Backtest)
	if err != nil {
		return fmt.Errorf("invalid backtest configuration: %w", err)
	}
	sc, err := strategy.FromConfig(&cfg.Strategy)
	if err != nil {
		return fmt.Errorf("invalid strategy configuration: %w", err)
	}

	svc, err := service.NewBacktestService(base, sc, repos.Race, repos.Report, appLog)
	if err != nil {
		return err
	}

	report, result, err := svc.Run(ctx, backtestOverrides(cmd))
	if err != nil {
		if backtest.IsCancelled(err) {
			processed := 0
			if result != nil {
				processed = len(result.Records)
			}
			appLog.WithField("races_processed", processed).Warn("Backtest cancelled")
		}
		if report == nil {
			return err
		}
		appLog.WithError(err).Error("Backtest finished with errors")
	}

	fmt.Print(backtest.GenerateConsoleReport(*report))

	outputDir := cfg.Backtest.OutputPath
	if backtestFlags.output != "" {
		outputDir = backtestFlags.output
	}
	if outputDir == "" {
		return nil
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := backtest.WriteOutputs(*report, result, outputDir); err != nil {
		return err
	}
	appLog.WithFields(logrus.Fields{
		"run_id": report.RunID,
		"output": outputDir,
	}).Info("Backtest results written")
	return nil
}

// backtestOverrides maps explicitly set flags onto run overrides
func backtestOverrides(cmd *cobra.Command) backtest.Overrides {
	o := backtest.Overrides{
		StartDate: backtestFlags.startDate,
		EndDate:   backtestFlags.endDate,
	}
	flags := cmd.Flags()
	if flags.Changed("initial-budget") {
		budget := decimal.NewFromFloat(backtestFlags.initialBudget)
		o.InitialBudget = &budget
	}
	if flags.Changed("min-ev") {
		o.MinExpectedValue = &backtestFlags.minEV
	}
	if flags.Changed("high-ev") {
		o.HighConfidenceEV = &backtestFlags.highEV
	}
	if flags.Changed("sample-size") {
		o.SampleSize = &backtestFlags.sampleSize
	}
	if flags.Changed("persist") {
		o.Persist = &backtestFlags.persist
	}
	return o
}

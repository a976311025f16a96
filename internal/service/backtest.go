package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/takashi5144/keiba-3/internal/backtest"
	"github.com/takashi5144/keiba-3/internal/models"
	"github.com/takashi5144/keiba-3/internal/strategy"
)

// BacktestService runs backtests over stored races with per-run overrides.
// Every run gets its own selector and simulator.
type BacktestService struct {
	base     backtest.Config
	strategy strategy.Config
	races    backtest.RaceSource
	reports  backtest.ReportStore
	logger   *logrus.Logger
}

// NewBacktestService creates a backtest service. reports may be nil.
func NewBacktestService(base backtest.Config, sc strategy.Config, races backtest.RaceSource, reports backtest.ReportStore, logger *logrus.Logger) (*BacktestService, error) {
	if races == nil {
		return nil, fmt.Errorf("race source is required")
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &BacktestService{
		base:     base,
		strategy: sc,
		races:    races,
		reports:  reports,
		logger:   logger,
	}, nil
}

// Run applies the overrides and runs one backtest
func (s *BacktestService) Run(ctx context.Context, o backtest.Overrides) (*models.BacktestReport, *backtest.Result, error) {
	cfg, sc, err := o.Apply(s.base, s.strategy)
	if err != nil {
		return nil, nil, err
	}

	selector, err := strategy.NewSelector(sc, s.logger)
	if err != nil {
		return nil, nil, err
	}
	engine, err := backtest.NewEngine(cfg, selector, s.races, s.reports, s.logger)
	if err != nil {
		return nil, nil, err
	}

	started := time.Now()
	report, result, err := engine.Run(ctx)
	if err != nil {
		return report, result, err
	}

	s.logger.WithFields(logrus.Fields{
		"run_id":       report.RunID.String(),
		"period_start": report.Period.Start,
		"period_end":   report.Period.End,
		"final_budget": report.FinalBudget.String(),
		"roi":          report.ROI,
		"duration":     time.Since(started),
	}).Info("Backtest completed")
	return report, result, nil
}

package backtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/takashi5144/keiba-3/internal/logger"
	"github.com/takashi5144/keiba-3/internal/metrics"
	"github.com/takashi5144/keiba-3/internal/models"
	"github.com/takashi5144/keiba-3/internal/strategy"
)

// Selector picks bets for a race given the current bankroll
type Selector interface {
	Select(raceID string, candidates []models.HorseCandidate, bankroll decimal.Decimal) models.BettingStrategyResult
}

// Simulator replays races in order against a single bankroll.
// It is not safe for concurrent use; each run needs its own Simulator.
type Simulator struct {
	config   Config
	selector Selector
	unit     decimal.Decimal
	state    *State
	log      *logger.BacktestLogger
	depleted bool
}

// Result is the output of a simulation run
type Result struct {
	Records       []models.SettlementRecord
	InitialBudget decimal.Decimal
	FinalBudget   decimal.Decimal
	EquityCurve   EquityCurve
}

// NewSimulator creates a simulator with a fresh bankroll at cfg.InitialBudget
func NewSimulator(cfg Config, selector *strategy.Selector, log *logrus.Logger) (*Simulator, error) {
	if selector == nil {
		return nil, fmt.Errorf("selector is required")
	}
	return newSimulator(cfg, selector, selector.Sizer().Unit(), log)
}

func newSimulator(cfg Config, selector Selector, unit decimal.Decimal, log *logrus.Logger) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !unit.IsPositive() {
		return nil, models.NewConfigurationError("stake_unit", "must be positive")
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Simulator{
		config:   cfg,
		selector: selector,
		unit:     unit,
		state:    NewState(cfg.InitialBudget),
		log:      logger.NewBacktestLogger(log),
	}, nil
}

// State returns the simulator's bankroll state
func (s *Simulator) State() *State {
	return s.state
}

// Config returns the backtest configuration
func (s *Simulator) Config() Config {
	return s.config
}

// Step selects with the current budget, settles the race and books the
// profit. Malformed races produce a zero-stake skipped record.
func (s *Simulator) Step(race *models.Race) models.SettlementRecord {
	record := models.SettlementRecord{
		RaceID:    race.RaceID,
		RaceDate:  race.RaceDate,
		BetAmount: decimal.Zero,
		Payout:    decimal.Zero,
		Profit:    decimal.Zero,
		Status:    models.SettlementStatusNoBet,
	}
	budget := s.state.CurrentBudget()

	switch err := race.CheckIntegrity(); {
	case err != nil:
		s.log.LogRaceSkipped(race.RaceID, err)
		record.Status = models.SettlementStatusSkipped
		record.Note = err.Error()
	case budget.LessThan(s.unit):
		if !s.depleted {
			s.depleted = true
			s.log.LogBankrollDepleted(race.RaceID, budget.String())
		}
		record.Note = "budget below stake unit"
	default:
		result := s.selector.Select(race.RaceID, race.Candidates, budget)
		settlement := SettleRace(result, race)
		record.BetAmount = settlement.TotalStake
		record.Won = settlement.Won
		record.OddsRealized = settlement.OddsRealized
		record.Payout = settlement.Payout
		record.Profit = settlement.Profit
		record.NumBets = settlement.NumBets
		record.Status = settlement.Status
		if settlement.Err != nil {
			record.Note = settlement.Err.Error()
			s.log.LogRaceForfeited(race.RaceID, race.ActualWinnerID, settlement.TotalStake.String())
		}
	}

	metrics.RecordBacktestRace(string(record.Status))
	return s.state.Apply(record)
}

// Run replays races ordered by (RaceDate, RaceID). Cancellation is
// checked between races; on cancel the partial result is returned with
// the context error.
func (s *Simulator) Run(ctx context.Context, races []*models.Race) (*Result, error) {
	started := time.Now()
	ordered := orderRaces(races)
	s.log.LogRunStarted(len(ordered), s.state.CurrentBudget().String())

	for _, race := range ordered {
		if err := ctx.Err(); err != nil {
			metrics.RecordBacktestRun("cancelled", time.Since(started).Seconds())
			return s.result(), err
		}
		s.Step(race)
	}

	result := s.result()
	s.log.LogRunFinished(len(result.Records), result.FinalBudget.String(), float64(time.Since(started).Microseconds())/1000)
	metrics.RecordBacktestRun("success", time.Since(started).Seconds())
	return result, nil
}

func (s *Simulator) result() *Result {
	records := make([]models.SettlementRecord, len(s.state.Records))
	copy(records, s.state.Records)
	curve := make(EquityCurve, len(s.state.EquityCurve))
	copy(curve, s.state.EquityCurve)
	return &Result{
		Records:       records,
		InitialBudget: s.config.InitialBudget,
		FinalBudget:   s.state.CurrentBudget(),
		EquityCurve:   curve,
	}
}

func orderRaces(races []*models.Race) []*models.Race {
	ordered := make([]*models.Race, 0, len(races))
	for _, race := range races {
		if race != nil {
			ordered = append(ordered, race)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].RaceDate.Equal(ordered[j].RaceDate) {
			return ordered[i].RaceDate.Before(ordered[j].RaceDate)
		}
		return ordered[i].RaceID < ordered[j].RaceID
	})
	return ordered
}

// RaceSource loads historical races with candidates and winners
type RaceSource interface {
	GetByDateRange(ctx context.Context, start, end time.Time) ([]*models.Race, error)
}

// ReportStore persists completed reports
type ReportStore interface {
	SaveReport(ctx context.Context, report *models.BacktestReport) error
}

// Engine orchestrates backtest runs over a race source
type Engine struct {
	config   Config
	selector *strategy.Selector
	races    RaceSource
	reports  ReportStore
	logger   *logrus.Logger
}

// NewEngine creates a new backtesting engine. reports may be nil.
func NewEngine(cfg Config, selector *strategy.Selector, races RaceSource, reports ReportStore, log *logrus.Logger) (*Engine, error) {
	if selector == nil {
		return nil, fmt.Errorf("selector is required")
	}
	if races == nil {
		return nil, fmt.Errorf("race source is required")
	}
	if log == nil {
		log = logrus.New()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		config:   cfg,
		selector: selector,
		races:    races,
		reports:  reports,
		logger:   log,
	}, nil
}

// Config returns the backtest configuration
func (e *Engine) Config() Config {
	return e.config
}

// Run loads the configured date range, simulates it with a fresh
// bankroll and summarizes the records.
func (e *Engine) Run(ctx context.Context) (*models.BacktestReport, *Result, error) {
	races, err := e.races.GetByDateRange(ctx, e.config.StartDate, e.config.EndDate)
	if err != nil {
		metrics.RecordBacktestRun("failure", 0)
		return nil, nil, fmt.Errorf("failed to load races: %w", err)
	}

	sim, err := NewSimulator(e.config, e.selector, e.logger)
	if err != nil {
		return nil, nil, err
	}
	result, err := sim.Run(ctx, races)
	if err != nil {
		return nil, result, err
	}

	report := SummarizeResult(result, e.config.Period(), e.config.SampleSize)
	metrics.UpdateBacktestOutcome(report.FinalBudget.InexactFloat64(), report.ROI)

	if e.config.Persist && e.reports != nil {
		if err := e.reports.SaveReport(ctx, &report); err != nil {
			return &report, result, fmt.Errorf("failed to save report: %w", err)
		}
	}
	return &report, result, nil
}

// IsCancelled reports whether err came from context cancellation
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

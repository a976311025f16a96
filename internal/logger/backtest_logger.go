// Package logger provides backtest logging.
package logger

import (
	"github.com/sirupsen/logrus"
)

// BacktestLogger provides dedicated logging for simulation runs.
type BacktestLogger struct {
	*logrus.Entry
}

// NewBacktestLogger creates a new backtest logger.
func NewBacktestLogger(baseLogger *logrus.Logger) *BacktestLogger {
	return &BacktestLogger{
		Entry: baseLogger.WithField("component", "backtest"),
	}
}

// LogRunStarted logs the start of a simulation run.
func (bl *BacktestLogger) LogRunStarted(numRaces int, initialBudget string) {
	bl.WithFields(logrus.Fields{
		"num_races":      numRaces,
		"initial_budget": initialBudget,
	}).Info("Starting backtest run")
}

// LogRunFinished logs the end of a simulation run.
func (bl *BacktestLogger) LogRunFinished(numRaces int, finalBudget string, durationMs float64) {
	bl.WithFields(logrus.Fields{
		"num_races":    numRaces,
		"final_budget": finalBudget,
		"duration_ms":  durationMs,
	}).Info("Backtest run finished")
}

// LogRaceSkipped logs a malformed race replaced by a zero-stake record.
func (bl *BacktestLogger) LogRaceSkipped(raceID string, err error) {
	bl.WithFields(logrus.Fields{
		"race_id": raceID,
		"error":   err.Error(),
	}).Warn("Skipping malformed race")
}

// LogRaceForfeited logs a race whose stakes were lost for lack of a usable winner.
func (bl *BacktestLogger) LogRaceForfeited(raceID, winnerID string, stake string) {
	bl.WithFields(logrus.Fields{
		"race_id":   raceID,
		"winner_id": winnerID,
		"stake":     stake,
	}).Warn("Settlement inconsistency, stakes forfeited")
}

// LogBankrollDepleted logs the first race at which no further bet is possible.
func (bl *BacktestLogger) LogBankrollDepleted(raceID string, budget string) {
	bl.WithFields(logrus.Fields{
		"race_id": raceID,
		"budget":  budget,
	}).Warn("Bankroll below stake unit, no further bets possible")
}

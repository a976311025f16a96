// Package logger provides strategy-specific logging.
package logger

import (
	"github.com/sirupsen/logrus"
)

// StrategyLogger provides dedicated logging for selection decisions.
type StrategyLogger struct {
	*logrus.Entry
}

// NewStrategyLogger creates a new strategy logger.
func NewStrategyLogger(baseLogger *logrus.Logger) *StrategyLogger {
	return &StrategyLogger{
		Entry: baseLogger.WithField("component", "strategy"),
	}
}

// LogSelection logs the outcome of selecting bets for one race.
func (sl *StrategyLogger) LogSelection(raceID string, candidates, eligible, selected int, totalStake string, confidence string) {
	sl.WithFields(logrus.Fields{
		"race_id":     raceID,
		"candidates":  candidates,
		"eligible":    eligible,
		"selected":    selected,
		"total_stake": totalStake,
		"confidence":  confidence,
	}).Debug("Race selection completed")
}

// LogStakeScaled logs a proportional reduction to the per-race cap.
func (sl *StrategyLogger) LogStakeScaled(raceID string, rawTotal, capAmount string) {
	sl.WithFields(logrus.Fields{
		"race_id":   raceID,
		"raw_total": rawTotal,
		"cap":       capAmount,
	}).Debug("Stakes scaled to race cap")
}

// LogCandidateFlagged logs a candidate excluded for data quality.
func (sl *StrategyLogger) LogCandidateFlagged(raceID, horseID, reason string) {
	sl.WithFields(logrus.Fields{
		"race_id":  raceID,
		"horse_id": horseID,
		"reason":   reason,
	}).Warn("Candidate excluded for data quality")
}

// Package metrics defines backtesting-specific metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Backtest counter vectors
var (
	BacktestRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backtest_runs_total",
		Help:      "Total number of backtest runs by status",
	}, []string{"status"})
	BacktestRacesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backtest_races_total",
		Help:      "Total number of replayed races by settlement status",
	}, []string{"status"})
)

// Backtest gauges
var (
	BacktestFinalBudget = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "backtest_final_budget",
		Help:      "Final budget of the most recent backtest run",
	})
	BacktestROI = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "backtest_roi_percent",
		Help:      "ROI of the most recent backtest run in percent",
	})
)

// Backtest histograms
var (
	BacktestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "backtest_duration_seconds",
		Help:      "Duration of backtest runs in seconds",
		Buckets:   []float64{0.01, 0.1, 1, 5, 10, 30, 60, 300},
	})
)

// RecordBacktestRun records a backtest run event.
// status should be one of: "success", "failure", "cancelled"
func RecordBacktestRun(status string, durationSeconds float64) {
	BacktestRunsTotal.WithLabelValues(status).Inc()
	BacktestDuration.Observe(durationSeconds)
}

// RecordBacktestRace records a replayed race by settlement status.
func RecordBacktestRace(status string) {
	BacktestRacesTotal.WithLabelValues(status).Inc()
}

// UpdateBacktestOutcome sets the gauges for the last completed run.
func UpdateBacktestOutcome(finalBudget, roi float64) {
	BacktestFinalBudget.Set(finalBudget)
	BacktestROI.Set(roi)
}

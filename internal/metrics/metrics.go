// Package metrics provides centralized Prometheus metrics registry for the betting engine.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "keiba"

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	SelectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "selections_total",
		Help:      "Total number of race selections by confidence",
	}, []string{"confidence"})
	RecommendedBetsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "recommended_bets_total",
		Help:      "Total number of individual bets recommended",
	})
	CandidateFlagsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "candidate_flags_total",
		Help:      "Total number of candidates excluded for data quality",
	})
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of API requests by route and status code",
	}, []string{"route", "code"})
)

// Gauge metrics
var (
	LatestRecommendedRaces = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "latest_recommended_races",
		Help:      "Number of races with bets in the latest daily batch",
	})
	LatestExpectedProfit = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "latest_expected_profit",
		Help:      "Total expected profit of the latest daily batch",
	})
	StreamSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "stream_subscribers",
		Help:      "Number of connected websocket subscribers",
	})
)

// Histogram metrics
var (
	SelectionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "selection_duration_seconds",
		Help:      "Duration of a single race selection in seconds",
		Buckets:   []float64{0.00001, 0.0001, 0.001, 0.01, 0.1},
	})
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of API requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(SelectionsTotal)
		registry.MustRegister(RecommendedBetsTotal)
		registry.MustRegister(CandidateFlagsTotal)
		registry.MustRegister(HTTPRequestsTotal)

		registry.MustRegister(LatestRecommendedRaces)
		registry.MustRegister(LatestExpectedProfit)
		registry.MustRegister(StreamSubscribers)

		registry.MustRegister(SelectionDuration)
		registry.MustRegister(HTTPRequestDuration)

		// Register backtest metrics
		registry.MustRegister(BacktestRunsTotal)
		registry.MustRegister(BacktestRacesTotal)
		registry.MustRegister(BacktestFinalBudget)
		registry.MustRegister(BacktestROI)
		registry.MustRegister(BacktestDuration)

		// Register predictor metrics
		registry.MustRegister(PredictorRequestsTotal)
		registry.MustRegister(PredictorRequestDuration)
		registry.MustRegister(PredictionCacheHits)
		registry.MustRegister(PredictionCacheMisses)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	return InitRegistry()
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// RecordSelection records one race selection.
func RecordSelection(confidence string, bets, flags int, durationSeconds float64) {
	SelectionsTotal.WithLabelValues(confidence).Inc()
	RecommendedBetsTotal.Add(float64(bets))
	CandidateFlagsTotal.Add(float64(flags))
	SelectionDuration.Observe(durationSeconds)
}

// RecordHTTPRequest records a served API request.
func RecordHTTPRequest(route, code string, durationSeconds float64) {
	HTTPRequestsTotal.WithLabelValues(route, code).Inc()
	HTTPRequestDuration.WithLabelValues(route).Observe(durationSeconds)
}

// UpdateLatestBatch updates the gauges describing the latest daily batch.
func UpdateLatestBatch(recommendedRaces int, expectedProfit float64) {
	LatestRecommendedRaces.Set(float64(recommendedRaces))
	LatestExpectedProfit.Set(expectedProfit)
}

// UpdateStreamSubscribers sets the websocket subscriber gauge.
func UpdateStreamSubscribers(count int) {
	StreamSubscribers.Set(float64(count))
}

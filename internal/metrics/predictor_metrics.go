package metrics

import "github.com/prometheus/client_golang/prometheus"

// Predictor client metrics
var (
	PredictorRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "predictor_requests_total",
		Help:      "Total number of prediction model requests by outcome",
	}, []string{"outcome"})
	PredictorRequestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "predictor_request_duration_seconds",
		Help:      "Latency of prediction model requests in seconds",
		Buckets:   prometheus.DefBuckets,
	})
	PredictionCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "prediction_cache_hits_total",
		Help:      "Total number of prediction cache hits",
	})
	PredictionCacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "prediction_cache_misses_total",
		Help:      "Total number of prediction cache misses",
	})
)

// RecordPredictorRequest records a call to the prediction model.
// outcome should be one of: "success", "error"
func RecordPredictorRequest(outcome string, durationSeconds float64) {
	PredictorRequestsTotal.WithLabelValues(outcome).Inc()
	PredictorRequestDuration.Observe(durationSeconds)
}

// RecordPredictionCache records a cache lookup.
func RecordPredictionCache(hit bool) {
	if hit {
		PredictionCacheHits.Inc()
		return
	}
	PredictionCacheMisses.Inc()
}

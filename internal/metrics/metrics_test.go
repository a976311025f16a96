package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegistry(t *testing.T) {
	InitRegistry()
	registry := GetRegistry()

	assert.NotNil(t, registry)
	assert.IsType(t, &prometheus.Registry{}, registry)
	assert.Same(t, registry, InitRegistry())
}

func TestRecordSelection(t *testing.T) {
	InitRegistry()
	before := testutil.ToFloat64(SelectionsTotal.WithLabelValues("high"))

	assert.NotPanics(t, func() {
		RecordSelection("high", 2, 1, 0.0001)
	})
	assert.Equal(t, before+1, testutil.ToFloat64(SelectionsTotal.WithLabelValues("high")))
}

func TestRecordBacktestRace(t *testing.T) {
	InitRegistry()

	tests := []struct {
		name   string
		status string
	}{
		{name: "settled", status: "settled"},
		{name: "no bet", status: "no_bet"},
		{name: "skipped", status: "skipped"},
		{name: "forfeited", status: "forfeited"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(BacktestRacesTotal.WithLabelValues(tt.status))
			RecordBacktestRace(tt.status)
			assert.Equal(t, before+1, testutil.ToFloat64(BacktestRacesTotal.WithLabelValues(tt.status)))
		})
	}
}

func TestUpdateBacktestOutcome(t *testing.T) {
	InitRegistry()

	UpdateBacktestOutcome(120000, 20)
	assert.Equal(t, 120000.0, testutil.ToFloat64(BacktestFinalBudget))
	assert.Equal(t, 20.0, testutil.ToFloat64(BacktestROI))
}

func TestRecordPredictionCache(t *testing.T) {
	InitRegistry()
	hits := testutil.ToFloat64(PredictionCacheHits)
	misses := testutil.ToFloat64(PredictionCacheMisses)

	RecordPredictionCache(true)
	RecordPredictionCache(false)
	RecordPredictionCache(false)

	assert.Equal(t, hits+1, testutil.ToFloat64(PredictionCacheHits))
	assert.Equal(t, misses+2, testutil.ToFloat64(PredictionCacheMisses))
}

func TestHandlerServesMetrics(t *testing.T) {
	InitRegistry()
	RecordBacktestRun("success", 0.2)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "keiba_backtest_runs_total"))
}

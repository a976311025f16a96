package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/takashi5144/keiba-3/internal/backtest"
	"github.com/takashi5144/keiba-3/internal/config"
	"github.com/takashi5144/keiba-3/internal/health"
	"github.com/takashi5144/keiba-3/internal/models"
)

type mockRecommender struct {
	mock.Mock
}

func (m *mockRecommender) StrategyFor(raceID string, candidates []models.HorseCandidate, bankroll decimal.Decimal) models.BettingStrategyResult {
	args := m.Called(raceID, candidates, bankroll)
	return args.Get(0).(models.BettingStrategyResult)
}

func (m *mockRecommender) ForDate(ctx context.Context, date time.Time, place string) (*models.RecommendationBatch, error) {
	args := m.Called(ctx, date, place)
	if b := args.Get(0); b != nil {
		return b.(*models.RecommendationBatch), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRecommender) ForRace(ctx context.Context, raceID string) (*models.RaceRecommendation, error) {
	args := m.Called(ctx, raceID)
	if r := args.Get(0); r != nil {
		return r.(*models.RaceRecommendation), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRecommender) ForRaces(ctx context.Context, raceIDs []string) (*models.RecommendationBatch, error) {
	args := m.Called(ctx, raceIDs)
	if b := args.Get(0); b != nil {
		return b.(*models.RecommendationBatch), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRecommender) Latest() (*models.RecommendationBatch, bool) {
	args := m.Called()
	if b := args.Get(0); b != nil {
		return b.(*models.RecommendationBatch), args.Bool(1)
	}
	return nil, args.Bool(1)
}

type mockBacktests struct {
	mock.Mock
}

func (m *mockBacktests) Run(ctx context.Context, o backtest.Overrides) (*models.BacktestReport, *backtest.Result, error) {
	args := m.Called(ctx, o)
	if r := args.Get(0); r != nil {
		return r.(*models.BacktestReport), nil, args.Error(1)
	}
	return nil, nil, args.Error(1)
}

type mockReports struct {
	mock.Mock
}

func (m *mockReports) GetReport(ctx context.Context, id uuid.UUID) (*models.BacktestReport, error) {
	args := m.Called(ctx, id)
	if r := args.Get(0); r != nil {
		return r.(*models.BacktestReport), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockReports) ListReports(ctx context.Context, limit int) ([]*models.BacktestReport, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]*models.BacktestReport), args.Error(1)
}

func newTestRouter(rec Recommender, bt BacktestRunner, reports ReportReader) http.Handler {
	checker := health.NewChecker("keiba", "test", nil)
	checker.SetReady(true)
	return NewRouter(config.ServerConfig{Port: 8080}, Dependencies{
		Recommender: rec,
		Backtests:   bt,
		Reports:     reports,
		Health:      checker,
	}, nil)
}

func doRequest(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGetStrategy(t *testing.T) {
	rec := &mockRecommender{}
	result := models.EmptyResult("r1")
	result.Confidence = models.ConfidenceHigh
	rec.On("StrategyFor", "r1", mock.Anything, mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(decimal.NewFromInt(100000))
	})).Return(result)

	router := newTestRouter(rec, nil, nil)
	resp := doRequest(t, router, http.MethodPost, "/api/v1/strategy", map[string]interface{}{
		"race_id":  "r1",
		"bankroll": "100000",
		"candidates": []map[string]interface{}{
			{"horse_id": "h1", "win_probability": 0.5, "odds": 3.0},
		},
	})

	require.Equal(t, http.StatusOK, resp.Code)
	var got models.BettingStrategyResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "r1", got.RaceID)
	assert.Equal(t, models.ConfidenceHigh, got.Confidence)
	rec.AssertExpectations(t)
}

func TestGetStrategyValidation(t *testing.T) {
	tests := []struct {
		name string
		body interface{}
	}{
		{name: "missing race id", body: map[string]interface{}{
			"candidates": []map[string]interface{}{{"horse_id": "h1"}},
		}},
		{name: "no candidates", body: map[string]interface{}{"race_id": "r1"}},
		{name: "candidate without id", body: map[string]interface{}{
			"race_id": "r1", "candidates": []map[string]interface{}{{"odds": 2.0}},
		}},
		{name: "negative bankroll", body: map[string]interface{}{
			"race_id": "r1", "bankroll": -1, "candidates": []map[string]interface{}{{"horse_id": "h1"}},
		}},
		{name: "not an object", body: "nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&mockRecommender{}, nil, nil)
			resp := doRequest(t, router, http.MethodPost, "/api/v1/strategy", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.Code)
		})
	}
}

func TestGetRaceRecommendations(t *testing.T) {
	rec := &mockRecommender{}
	date := time.Date(2024, 5, 26, 0, 0, 0, 0, time.UTC)
	rec.On("ForDate", mock.Anything, date, "Tokyo").Return(&models.RecommendationBatch{
		Date:    "2024-05-26",
		Summary: models.RecommendationSummary{TotalRaces: 12},
	}, nil)

	router := newTestRouter(rec, nil, nil)
	resp := doRequest(t, router, http.MethodGet, "/api/v1/races/2024-05-26/recommendations?place=Tokyo", nil)

	require.Equal(t, http.StatusOK, resp.Code)
	var got models.RecommendationBatch
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, 12, got.Summary.TotalRaces)

	bad := doRequest(t, router, http.MethodGet, "/api/v1/races/26-05-2024/recommendations", nil)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestGetRaceRecommendationsError(t *testing.T) {
	rec := &mockRecommender{}
	rec.On("ForDate", mock.Anything, mock.Anything, "").Return(nil, errors.New("db down"))

	router := newTestRouter(rec, nil, nil)
	resp := doRequest(t, router, http.MethodGet, "/api/v1/races/2024-05-26/recommendations", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.Code)

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotContains(t, body.Message, "db down")
}

func TestGetLatestRecommendations(t *testing.T) {
	empty := &mockRecommender{}
	empty.On("Latest").Return(nil, false)
	resp := doRequest(t, newTestRouter(empty, nil, nil), http.MethodGet, "/api/v1/recommendations/latest", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	filled := &mockRecommender{}
	filled.On("Latest").Return(&models.RecommendationBatch{Date: "2024-05-26"}, true)
	resp = doRequest(t, newTestRouter(filled, nil, nil), http.MethodGet, "/api/v1/recommendations/latest", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestRunBacktest(t *testing.T) {
	bt := &mockBacktests{}
	minEV := 1.5
	bt.On("Run", mock.Anything, backtest.Overrides{StartDate: "2024-01-01", MinExpectedValue: &minEV}).
		Return(&models.BacktestReport{RunID: uuid.New(), ROI: 12.5}, nil)

	router := newTestRouter(&mockRecommender{}, bt, nil)
	resp := doRequest(t, router, http.MethodPost, "/api/v1/backtest", map[string]interface{}{
		"start_date":         "2024-01-01",
		"min_expected_value": 1.5,
	})

	require.Equal(t, http.StatusOK, resp.Code)
	var got models.BacktestReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, 12.5, got.ROI)
	bt.AssertExpectations(t)
}

func TestRunBacktestErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "configuration", err: models.NewConfigurationError("start_date", "bad"), status: http.StatusBadRequest},
		{name: "internal", err: errors.New("boom"), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bt := &mockBacktests{}
			bt.On("Run", mock.Anything, mock.Anything).Return(nil, tt.err)

			router := newTestRouter(&mockRecommender{}, bt, nil)
			resp := doRequest(t, router, http.MethodPost, "/api/v1/backtest", map[string]interface{}{})
			assert.Equal(t, tt.status, resp.Code)
		})
	}

	resp := doRequest(t, newTestRouter(&mockRecommender{}, nil, nil), http.MethodPost, "/api/v1/backtest", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestReportsEndpoints(t *testing.T) {
	id := uuid.New()
	reports := &mockReports{}
	reports.On("ListReports", mock.Anything, 5).Return([]*models.BacktestReport{{RunID: id}}, nil)
	reports.On("GetReport", mock.Anything, id).Return(&models.BacktestReport{RunID: id}, nil)
	reports.On("GetReport", mock.Anything, mock.Anything).Return(nil, models.ErrNotFound)

	router := newTestRouter(&mockRecommender{}, nil, reports)

	resp := doRequest(t, router, http.MethodGet, "/api/v1/backtest/reports?limit=5", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = doRequest(t, router, http.MethodGet, "/api/v1/backtest/reports/"+id.String(), nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = doRequest(t, router, http.MethodGet, "/api/v1/backtest/reports/"+uuid.New().String(), nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = doRequest(t, router, http.MethodGet, "/api/v1/backtest/reports/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	router := newTestRouter(&mockRecommender{}, nil, nil)

	assert.Equal(t, http.StatusOK, doRequest(t, router, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, doRequest(t, router, http.MethodGet, "/ready", nil).Code)
	assert.Equal(t, http.StatusOK, doRequest(t, router, http.MethodGet, "/metrics", nil).Code)
}

func TestGetRaceRecommendation(t *testing.T) {
	rec := &mockRecommender{}
	rec.On("ForRace", mock.Anything, "202405260511").Return(&models.RaceRecommendation{
		RaceID:   "202405260511",
		Place:    "Tokyo",
		Strategy: models.EmptyResult("202405260511"),
	}, nil)

	resp := doRequest(t, newTestRouter(rec, nil, nil), http.MethodGet, "/api/v1/races/202405260511/recommendation", nil)

	require.Equal(t, http.StatusOK, resp.Code)
	var got models.RaceRecommendation
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))
	assert.Equal(t, "202405260511", got.RaceID)
	assert.Equal(t, "Tokyo", got.Place)
	rec.AssertExpectations(t)
}

func TestGetRaceRecommendationUnknownRace(t *testing.T) {
	rec := &mockRecommender{}
	rec.On("ForRace", mock.Anything, "missing").Return(nil, fmt.Errorf("failed to load race missing: %w", models.ErrNotFound))

	resp := doRequest(t, newTestRouter(rec, nil, nil), http.MethodGet, "/api/v1/races/missing/recommendation", nil)

	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestGetBatchRecommendations(t *testing.T) {
	rec := &mockRecommender{}
	rec.On("ForRaces", mock.Anything, []string{"r1", "r2"}).Return(&models.RecommendationBatch{
		Races:   []models.RaceRecommendation{{RaceID: "r2"}, {RaceID: "r1"}},
		Summary: models.RecommendationSummary{TotalRaces: 2},
	}, nil)

	resp := doRequest(t, newTestRouter(rec, nil, nil), http.MethodPost, "/api/v1/recommendations/batch", map[string]interface{}{
		"race_ids": []string{"r1", "r2"},
	})

	require.Equal(t, http.StatusOK, resp.Code)
	var got models.RecommendationBatch
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))
	assert.Len(t, got.Races, 2)
	assert.Equal(t, 2, got.Summary.TotalRaces)
	rec.AssertExpectations(t)
}

func TestGetBatchRecommendationsValidation(t *testing.T) {
	rec := &mockRecommender{}
	router := newTestRouter(rec, nil, nil)

	resp := doRequest(t, router, http.MethodPost, "/api/v1/recommendations/batch", map[string]interface{}{
		"race_ids": []string{},
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	rec.On("ForRaces", mock.Anything, []string{"r1", "nope"}).Return(nil, fmt.Errorf("failed to load race nope: %w", models.ErrNotFound))
	resp = doRequest(t, router, http.MethodPost, "/api/v1/recommendations/batch", map[string]interface{}{
		"race_ids": []string{"r1", "nope"},
	})
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/takashi5144/keiba-3/internal/backtest"
	"github.com/takashi5144/keiba-3/internal/models"
	"github.com/takashi5144/keiba-3/internal/stream"
)

const dateLayout = "2006-01-02"

// Recommender produces live strategy results
type Recommender interface {
	StrategyFor(raceID string, candidates []models.HorseCandidate, bankroll decimal.Decimal) models.BettingStrategyResult
	ForDate(ctx context.Context, date time.Time, place string) (*models.RecommendationBatch, error)
	ForRace(ctx context.Context, raceID string) (*models.RaceRecommendation, error)
	ForRaces(ctx context.Context, raceIDs []string) (*models.RecommendationBatch, error)
	Latest() (*models.RecommendationBatch, bool)
}

// BacktestRunner runs a backtest with overrides
type BacktestRunner interface {
	Run(ctx context.Context, o backtest.Overrides) (*models.BacktestReport, *backtest.Result, error)
}

// ReportReader reads persisted backtest reports
type ReportReader interface {
	GetReport(ctx context.Context, id uuid.UUID) (*models.BacktestReport, error)
	ListReports(ctx context.Context, limit int) ([]*models.BacktestReport, error)
}

// Broadcaster pushes messages to live subscribers
type Broadcaster interface {
	Broadcast(msgType string, payload interface{}) bool
}

// Handler contains dependencies for HTTP handlers
type Handler struct {
	recommender Recommender
	backtests   BacktestRunner
	reports     ReportReader
	broadcaster Broadcaster
	validate    *validator.Validate
	logger      *logrus.Logger
}

// StrategyRequest is the body of POST /api/v1/strategy
type StrategyRequest struct {
	RaceID     string                  `json:"race_id" validate:"required"`
	Bankroll   decimal.Decimal         `json:"bankroll"`
	Candidates []models.HorseCandidate `json:"candidates" validate:"required,min=1,dive"`
}

// GetStrategy runs the selector on the posted candidates
func (h *Handler) GetStrategy(w http.ResponseWriter, r *http.Request) {
	var req StrategyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request", err)
		return
	}
	if req.Bankroll.IsNegative() {
		h.respondError(w, http.StatusBadRequest, "invalid request", models.NewConfigurationError("bankroll", "cannot be negative"))
		return
	}

	respondJSON(w, http.StatusOK, h.recommender.StrategyFor(req.RaceID, req.Candidates, req.Bankroll))
}

// GetRaceRecommendations evaluates every race on {date}
// Query params: place
func (h *Handler) GetRaceRecommendations(w http.ResponseWriter, r *http.Request) {
	date, err := time.Parse(dateLayout, chi.URLParam(r, "date"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD", err)
		return
	}

	batch, err := h.recommender.ForDate(r.Context(), date, r.URL.Query().Get("place"))
	if err != nil {
		h.respondError(w, statusFor(err), "failed to compute recommendations", err)
		return
	}
	respondJSON(w, http.StatusOK, batch)
}

// GetRaceRecommendation evaluates one stored race by {id}
func (h *Handler) GetRaceRecommendation(w http.ResponseWriter, r *http.Request) {
	raceID := chi.URLParam(r, "id")
	rec, err := h.recommender.ForRace(r.Context(), raceID)
	if err != nil {
		h.respondError(w, statusFor(err), fmt.Sprintf("failed to recommend race %s", raceID), err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// BatchRequest is the body of POST /api/v1/recommendations/batch
type BatchRequest struct {
	RaceIDs []string `json:"race_ids" validate:"required,min=1,max=200,dive,required"`
}

// GetBatchRecommendations evaluates the posted stored races
func (h *Handler) GetBatchRecommendations(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request", err)
		return
	}

	batch, err := h.recommender.ForRaces(r.Context(), req.RaceIDs)
	if err != nil {
		h.respondError(w, statusFor(err), "failed to compute recommendations", err)
		return
	}
	respondJSON(w, http.StatusOK, batch)
}

// GetLatestRecommendations returns the last scheduled batch
func (h *Handler) GetLatestRecommendations(w http.ResponseWriter, r *http.Request) {
	batch, ok := h.recommender.Latest()
	if !ok {
		h.respondError(w, http.StatusNotFound, "no recommendations computed yet", nil)
		return
	}
	respondJSON(w, http.StatusOK, batch)
}

// RunBacktest runs a backtest with the posted overrides
func (h *Handler) RunBacktest(w http.ResponseWriter, r *http.Request) {
	if h.backtests == nil {
		h.respondError(w, http.StatusServiceUnavailable, "backtests are not enabled", nil)
		return
	}

	var o backtest.Overrides
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid request body", err)
			return
		}
	}

	report, _, err := h.backtests.Run(r.Context(), o)
	if err != nil {
		h.respondError(w, statusFor(err), "backtest failed", err)
		return
	}

	if h.broadcaster != nil {
		h.broadcaster.Broadcast(stream.MessageTypeBacktest, report)
	}
	respondJSON(w, http.StatusOK, report)
}

// ListReports lists persisted backtest reports
// Query params: limit
func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		h.respondError(w, http.StatusServiceUnavailable, "report storage is not enabled", nil)
		return
	}

	limit := parseIntParam(r, "limit", 20)
	if limit > 200 {
		limit = 200
	}
	reports, err := h.reports.ListReports(r.Context(), limit)
	if err != nil {
		h.respondError(w, statusFor(err), "failed to list reports", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"reports": reports,
		"count":   len(reports),
	})
}

// GetReport returns one persisted backtest report
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		h.respondError(w, http.StatusServiceUnavailable, "report storage is not enabled", nil)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid report id", err)
		return
	}
	report, err := h.reports.GetReport(r.Context(), id)
	if err != nil {
		h.respondError(w, statusFor(err), fmt.Sprintf("failed to get report %s", id), err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func parseIntParam(r *http.Request, name string, defaultValue int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}

package predictor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/takashi5144/keiba-3/internal/config"
	"github.com/takashi5144/keiba-3/internal/metrics"
)

const predictRacePath = "/api/v1/prediction/predict/race"

// Prediction holds per-horse model output for one race
type Prediction struct {
	RaceID        string
	Probabilities map[string]float64
	// Odds are the odds the model saw, when it returned them
	Odds      map[string]float64
	FetchedAt time.Time
}

// Probability returns the predicted probability for a horse
func (p *Prediction) Probability(horseID string) (float64, bool) {
	v, ok := p.Probabilities[horseID]
	return v, ok
}

type predictRaceRequest struct {
	RaceID         string `json:"race_id"`
	UseCurrentOdds bool   `json:"use_current_odds"`
}

type horsePrediction struct {
	HorseID        string   `json:"horse_id"`
	HorseName      string   `json:"horse_name"`
	PostPosition   int      `json:"post_position"`
	WinProbability float64  `json:"win_probability"`
	Odds           *float64 `json:"odds"`
}

type predictRaceResponse struct {
	RaceID      string            `json:"race_id"`
	Predictions []horsePrediction `json:"predictions"`
}

// Client calls the external model service over HTTP
type Client struct {
	http    *RateLimitedHTTPClient
	baseURL string
	apiKey  string
	cache   *PredictionCache
	logger  *logrus.Logger
}

// NewClient creates a model client from configuration
func NewClient(cfg *config.PredictorConfig, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	httpCfg := DefaultHTTPClientConfig()
	httpCfg.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	httpCfg.MaxRetries = cfg.RetryAttempts
	httpCfg.RateLimit = cfg.RequestsPerSecond

	var pc *PredictionCache
	if cfg.CacheTTLSeconds > 0 {
		pc = NewPredictionCache(time.Duration(cfg.CacheTTLSeconds) * time.Second)
	}

	return &Client{
		http:    NewRateLimitedHTTPClient(httpCfg, logger),
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		cache:   pc,
		logger:  logger,
	}
}

// Cache returns the prediction cache, nil when caching is disabled
func (c *Client) Cache() *PredictionCache {
	return c.cache
}

// PredictRace fetches win probabilities for every horse in a race
func (c *Client) PredictRace(ctx context.Context, raceID string) (*Prediction, error) {
	if c.cache != nil {
		if pred, ok := c.cache.Get(raceID); ok {
			return pred, nil
		}
	}

	start := time.Now()
	pred, err := c.fetch(ctx, raceID)
	if err != nil {
		metrics.RecordPredictorRequest("error", time.Since(start).Seconds())
		c.logger.WithFields(logrus.Fields{
			"race_id": raceID,
			"error":   err.Error(),
		}).Warn("Prediction request failed")
		return nil, err
	}
	metrics.RecordPredictorRequest("success", time.Since(start).Seconds())

	c.logger.WithFields(logrus.Fields{
		"race_id":  raceID,
		"horses":   len(pred.Probabilities),
		"duration": time.Since(start),
	}).Debug("Prediction received")

	if c.cache != nil {
		c.cache.Set(pred)
	}
	return pred, nil
}

func (c *Client) fetch(ctx context.Context, raceID string) (*Prediction, error) {
	body, err := json.Marshal(predictRaceRequest{RaceID: raceID, UseCurrentOdds: true})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	header := http.Header{}
	if c.apiKey != "" {
		header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Post(ctx, c.baseURL+predictRacePath, header, body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrPredictorUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: status %d: %s", ErrPredictorUnavailable, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out predictRaceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrediction, err)
	}
	return toPrediction(raceID, out)
}

func toPrediction(raceID string, out predictRaceResponse) (*Prediction, error) {
	if out.RaceID != "" && out.RaceID != raceID {
		return nil, fmt.Errorf("%w: asked for race %s, got %s", ErrInvalidPrediction, raceID, out.RaceID)
	}
	if len(out.Predictions) == 0 {
		return nil, fmt.Errorf("%w: no predictions for race %s", ErrInvalidPrediction, raceID)
	}

	pred := &Prediction{
		RaceID:        raceID,
		Probabilities: make(map[string]float64, len(out.Predictions)),
		Odds:          make(map[string]float64),
		FetchedAt:     time.Now(),
	}
	for _, h := range out.Predictions {
		if h.HorseID == "" {
			return nil, fmt.Errorf("%w: prediction without horse id", ErrInvalidPrediction)
		}
		p := h.WinProbability
		if math.IsNaN(p) || p < 0 || p > 1 {
			return nil, fmt.Errorf("%w: probability %v for %s", ErrInvalidPrediction, p, h.HorseID)
		}
		pred.Probabilities[h.HorseID] = p
		if h.Odds != nil {
			pred.Odds[h.HorseID] = *h.Odds
		}
	}
	return pred, nil
}

// HealthCheck checks model service health
func (c *Client) HealthCheck(ctx context.Context) error {
	resp, err := c.http.Get(ctx, c.baseURL+"/health")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPredictorUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrPredictorUnavailable, resp.StatusCode)
	}
	return nil
}

// Close releases idle connections
func (c *Client) Close() error {
	return c.http.Close()
}

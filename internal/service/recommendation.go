package service

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/takashi5144/keiba-3/internal/metrics"
	"github.com/takashi5144/keiba-3/internal/models"
	"github.com/takashi5144/keiba-3/internal/predictor"
	"github.com/takashi5144/keiba-3/internal/repository"
	"github.com/takashi5144/keiba-3/internal/strategy"
)

const (
	defaultConcurrency = 4
	latestKey          = "latest"
	dateLayout         = "2006-01-02"
)

// Predictor supplies model probabilities for a race
type Predictor interface {
	PredictRace(ctx context.Context, raceID string) (*predictor.Prediction, error)
}

// RecommendationService produces live betting recommendations for a day
// of races. The selector is shared across goroutines; each race is
// evaluated independently.
type RecommendationService struct {
	selector    *strategy.Selector
	races       repository.RaceRepository
	predictor   Predictor
	bankroll    decimal.Decimal
	concurrency int
	location    *time.Location
	latest      *cache.Cache
	logger      *logrus.Logger
	now         func() time.Time
}

// RecommendationOptions configures a RecommendationService
type RecommendationOptions struct {
	// Bankroll is the budget stakes are sized against
	Bankroll    decimal.Decimal
	Concurrency int
	Location    *time.Location
}

// NewRecommendationService creates a recommendation service. pred may be
// nil, in which case only stored probabilities are used.
func NewRecommendationService(
	selector *strategy.Selector,
	races repository.RaceRepository,
	pred Predictor,
	opts RecommendationOptions,
	logger *logrus.Logger,
) (*RecommendationService, error) {
	if selector == nil {
		return nil, fmt.Errorf("selector is required")
	}
	if races == nil {
		return nil, fmt.Errorf("race repository is required")
	}
	if !opts.Bankroll.IsPositive() {
		return nil, models.NewConfigurationError("bankroll", "must be positive")
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	return &RecommendationService{
		selector:    selector,
		races:       races,
		predictor:   pred,
		bankroll:    opts.Bankroll,
		concurrency: opts.Concurrency,
		location:    opts.Location,
		latest:      cache.New(cache.NoExpiration, 0),
		logger:      logger,
		now:         time.Now,
	}, nil
}

// Bankroll returns the default budget used for sizing
func (s *RecommendationService) Bankroll() decimal.Decimal {
	return s.bankroll
}

// StrategyFor runs the selector on ad-hoc candidates. A zero bankroll
// falls back to the service default.
func (s *RecommendationService) StrategyFor(raceID string, candidates []models.HorseCandidate, bankroll decimal.Decimal) models.BettingStrategyResult {
	if bankroll.IsZero() {
		bankroll = s.bankroll
	}
	started := time.Now()
	result := s.selector.Select(raceID, candidates, bankroll)
	metrics.RecordSelection(result.Confidence.String(), len(result.Recommendations), len(result.Flags), time.Since(started).Seconds())
	return result
}

// ForDate evaluates every race on date, optionally filtered by place.
// Races are returned by best candidate EV descending, then race id.
func (s *RecommendationService) ForDate(ctx context.Context, date time.Time, place string) (*models.RecommendationBatch, error) {
	races, err := s.races.GetByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load races: %w", err)
	}

	filtered := races[:0:0]
	for _, race := range races {
		if place == "" || race.Place == place {
			filtered = append(filtered, race)
		}
	}

	recs, err := s.recommendAll(ctx, filtered)
	if err != nil {
		return nil, err
	}

	sortRecommendations(recs)
	batch := &models.RecommendationBatch{
		Date:    date.Format(dateLayout),
		Races:   recs,
		Summary: summarize(recs),
	}

	s.logger.WithFields(logrus.Fields{
		"date":              batch.Date,
		"place":             place,
		"total_races":       batch.Summary.TotalRaces,
		"recommended_races": batch.Summary.RecommendedRaces,
	}).Info("Recommendations computed")
	return batch, nil
}

// ForRace evaluates one stored race. An unknown id yields
// models.ErrNotFound.
func (s *RecommendationService) ForRace(ctx context.Context, raceID string) (*models.RaceRecommendation, error) {
	race, err := s.races.GetByID(ctx, raceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load race %s: %w", raceID, err)
	}
	rec := s.recommend(ctx, race)
	return &rec, nil
}

// ForRaces evaluates the given stored races, ignoring duplicate ids.
// Every id must exist; the first unknown one fails the batch.
func (s *RecommendationService) ForRaces(ctx context.Context, raceIDs []string) (*models.RecommendationBatch, error) {
	seen := make(map[string]bool, len(raceIDs))
	races := make([]*models.Race, 0, len(raceIDs))
	for _, id := range raceIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		race, err := s.races.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load race %s: %w", id, err)
		}
		races = append(races, race)
	}

	recs, err := s.recommendAll(ctx, races)
	if err != nil {
		return nil, err
	}
	sortRecommendations(recs)
	batch := &models.RecommendationBatch{
		Races:   recs,
		Summary: summarize(recs),
	}

	s.logger.WithFields(logrus.Fields{
		"total_races":       batch.Summary.TotalRaces,
		"recommended_races": batch.Summary.RecommendedRaces,
	}).Info("Batch recommendations computed")
	return batch, nil
}

// Refresh computes today's recommendations and stores them as latest
func (s *RecommendationService) Refresh(ctx context.Context) (*models.RecommendationBatch, error) {
	batch, err := s.ForDate(ctx, s.now().In(s.location), "")
	if err != nil {
		return nil, err
	}
	s.SetLatest(batch)
	return batch, nil
}

// SetLatest replaces the cached latest batch
func (s *RecommendationService) SetLatest(batch *models.RecommendationBatch) {
	s.latest.Set(latestKey, batch, cache.NoExpiration)
	metrics.UpdateLatestBatch(batch.Summary.RecommendedRaces, batch.Summary.TotalExpectedProfit.InexactFloat64())
}

// Latest returns the most recently refreshed batch
func (s *RecommendationService) Latest() (*models.RecommendationBatch, bool) {
	v, ok := s.latest.Get(latestKey)
	if !ok {
		return nil, false
	}
	batch, ok := v.(*models.RecommendationBatch)
	return batch, ok
}

// recommendAll evaluates races in parallel, bounded by the configured
// concurrency. Results keep the input order.
func (s *RecommendationService) recommendAll(ctx context.Context, races []*models.Race) ([]models.RaceRecommendation, error) {
	recs := make([]models.RaceRecommendation, len(races))
	semaphore := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup

	for i := range races {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			recs[idx] = s.recommend(ctx, races[idx])
		}(i)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

func (s *RecommendationService) recommend(ctx context.Context, race *models.Race) models.RaceRecommendation {
	candidates := s.withPredictions(ctx, race)

	return models.RaceRecommendation{
		RaceID:     race.RaceID,
		RaceDate:   race.RaceDate.Format(dateLayout),
		Place:      race.Place,
		RaceNumber: race.RaceNumber,
		RaceName:   race.RaceName,
		Candidates: strategy.RankCandidates(candidates),
		Strategy:   s.StrategyFor(race.RaceID, candidates, s.bankroll),
	}
}

// withPredictions fills missing probabilities (and odds) from the model.
// On failure the stored candidates are used unchanged and the selector
// flags what is missing.
func (s *RecommendationService) withPredictions(ctx context.Context, race *models.Race) []models.HorseCandidate {
	candidates := make([]models.HorseCandidate, len(race.Candidates))
	copy(candidates, race.Candidates)

	if s.predictor == nil || !needsPrediction(candidates) {
		return candidates
	}

	pred, err := s.predictor.PredictRace(ctx, race.RaceID)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"race_id": race.RaceID,
			"error":   err.Error(),
		}).Warn("Using stored probabilities")
		return candidates
	}

	fetched := make(map[string]float64)
	for i, c := range candidates {
		if !c.HasProbability() {
			if p, ok := pred.Probability(c.HorseID); ok {
				candidates[i] = c.WithProbability(p)
				fetched[c.HorseID] = p
			}
		}
		if !candidates[i].HasOdds() {
			if o, ok := pred.Odds[c.HorseID]; ok {
				odds := o
				candidates[i].Odds = &odds
			}
		}
	}

	if len(fetched) > 0 {
		if err := s.races.UpdateProbabilities(ctx, race.RaceID, fetched); err != nil {
			s.logger.WithFields(logrus.Fields{
				"race_id": race.RaceID,
				"error":   err.Error(),
			}).Warn("Failed to store probabilities")
		}
	}
	return candidates
}

func needsPrediction(candidates []models.HorseCandidate) bool {
	for _, c := range candidates {
		if !c.HasProbability() {
			return true
		}
	}
	return false
}

func bestCandidateEV(rec models.RaceRecommendation) float64 {
	best := 0.0
	for _, c := range rec.Candidates {
		if c.ExpectedValue != nil && *c.ExpectedValue > best {
			best = *c.ExpectedValue
		}
	}
	return best
}

func sortRecommendations(recs []models.RaceRecommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		ei, ej := bestCandidateEV(recs[i]), bestCandidateEV(recs[j])
		if ei != ej {
			return ei > ej
		}
		return recs[i].RaceID < recs[j].RaceID
	})
}

func summarize(recs []models.RaceRecommendation) models.RecommendationSummary {
	summary := models.RecommendationSummary{
		TotalRaces:          len(recs),
		TotalExpectedProfit: decimal.Zero,
	}
	for _, r := range recs {
		if r.Strategy.HasBets() {
			summary.RecommendedRaces++
			summary.TotalExpectedProfit = summary.TotalExpectedProfit.Add(r.Strategy.ExpectedProfit)
		}
	}
	return summary
}

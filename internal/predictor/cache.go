package predictor

import (
	"sync/atomic"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/takashi5144/keiba-3/internal/metrics"
)

// PredictionCache keeps recent race predictions in memory keyed by race id
type PredictionCache struct {
	cache  *cache.Cache
	ttl    time.Duration
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewPredictionCache creates a new prediction cache
func NewPredictionCache(ttl time.Duration) *PredictionCache {
	return &PredictionCache{
		cache: cache.New(ttl, ttl*2),
		ttl:   ttl,
	}
}

// Get retrieves a cached prediction
func (pc *PredictionCache) Get(raceID string) (*Prediction, bool) {
	if v, found := pc.cache.Get(raceID); found {
		if pred, ok := v.(*Prediction); ok {
			pc.hits.Add(1)
			metrics.RecordPredictionCache(true)
			return pred, true
		}
	}
	pc.misses.Add(1)
	metrics.RecordPredictionCache(false)
	return nil, false
}

// Set stores a prediction
func (pc *PredictionCache) Set(pred *Prediction) {
	pc.cache.Set(pred.RaceID, pred, pc.ttl)
}

// Invalidate drops the cached prediction for a race
func (pc *PredictionCache) Invalidate(raceID string) {
	pc.cache.Delete(raceID)
}

// Clear flushes the entire cache
func (pc *PredictionCache) Clear() {
	pc.cache.Flush()
	pc.hits.Store(0)
	pc.misses.Store(0)
}

// Stats returns cache statistics
func (pc *PredictionCache) Stats() (hits, misses uint64, ratio float64) {
	hits = pc.hits.Load()
	misses = pc.misses.Load()
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}
	return
}

// ItemCount returns the number of items in cache
func (pc *PredictionCache) ItemCount() int {
	return pc.cache.ItemCount()
}

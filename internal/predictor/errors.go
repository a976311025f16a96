// Package predictor is the client for the external win probability model.
package predictor

import "errors"

var (
	// ErrPredictorUnavailable indicates the model service is unreachable
	ErrPredictorUnavailable = errors.New("predictor service unavailable")

	// ErrInvalidPrediction indicates the prediction response is unusable
	ErrInvalidPrediction = errors.New("invalid prediction response")

	// ErrCircuitOpen indicates too many consecutive failures
	ErrCircuitOpen = errors.New("circuit breaker open")
)

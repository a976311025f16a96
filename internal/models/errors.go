package models

import (
	"errors"
	"fmt"
)

// Custom errors
var (
	ErrNotFound                = errors.New("record not found")
	ErrRaceAlreadySettled      = errors.New("race already settled")
	ErrMalformedRace           = errors.New("malformed race")
	ErrSettlementInconsistency = errors.New("settlement inconsistency")
)

// ConfigurationError reports an invalid configuration value. It is
// returned before any race is processed.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(field, reason string) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: reason}
}

// DataQualityError reports a candidate that cannot be bet on
type DataQualityError struct {
	HorseID string
	Reason  string
}

func (e *DataQualityError) Error() string {
	return fmt.Sprintf("data quality: horse %s: %s", e.HorseID, e.Reason)
}

// IsConfigurationError reports whether err is a configuration error
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/takashi5144/keiba-3/internal/models"
)

// RaceRepository defines the interface for race data access. Races are
// always returned with their candidates, ordered by (race_date, race_id).
type RaceRepository interface {
	Create(ctx context.Context, race *models.Race) error
	GetByID(ctx context.Context, raceID string) (*models.Race, error)
	GetByDate(ctx context.Context, date time.Time) ([]*models.Race, error)
	GetByDateRange(ctx context.Context, start, end time.Time) ([]*models.Race, error)
	SetWinner(ctx context.Context, raceID, winnerID string) error
	UpdateProbabilities(ctx context.Context, raceID string, probabilities map[string]float64) error
}

// ReportRepository defines the interface for backtest report storage
type ReportRepository interface {
	SaveReport(ctx context.Context, report *models.BacktestReport) error
	GetReport(ctx context.Context, id uuid.UUID) (*models.BacktestReport, error)
	ListReports(ctx context.Context, limit int) ([]*models.BacktestReport, error)
}

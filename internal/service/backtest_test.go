package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/takashi5144/keiba-3/internal/backtest"
	"github.com/takashi5144/keiba-3/internal/models"
	"github.com/takashi5144/keiba-3/internal/strategy"
)

type recordingReportStore struct {
	saved []*models.BacktestReport
}

func (s *recordingReportStore) SaveReport(ctx context.Context, report *models.BacktestReport) error {
	s.saved = append(s.saved, report)
	return nil
}

func settledRace(id string, date time.Time, winner string) *models.Race {
	race := raceOn(id, "Tokyo", date,
		models.NewCandidate("a", 0.5, 3.0),
		models.NewCandidate("b", 0.1, 2.0),
	)
	race.ActualWinnerID = winner
	return race
}

func newTestBacktestService(t *testing.T, repo *mockRaceRepository, reports backtest.ReportStore) *BacktestService {
	t.Helper()
	sc := strategy.DefaultConfig()
	sc.KellyFraction = 1
	base := backtest.Config{
		StartDate:     time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
		InitialBudget: decimal.NewFromInt(100000),
		SampleSize:    backtest.DefaultSampleSize,
	}
	svc, err := NewBacktestService(base, sc, repo, reports, nil)
	require.NoError(t, err)
	return svc
}

func TestBacktestServiceCompoundsBudget(t *testing.T) {
	day1 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	repo := new(mockRaceRepository)
	repo.On("GetByDateRange", mock.Anything, mock.Anything, mock.Anything).
		Return([]*models.Race{settledRace("r2", day2, "b"), settledRace("r1", day1, "a")}, nil)

	svc := newTestBacktestService(t, repo, nil)
	report, result, err := svc.Run(context.Background(), backtest.Overrides{})
	require.NoError(t, err)

	require.Len(t, result.Records, 2)
	assert.Equal(t, "r1", result.Records[0].RaceID)
	assert.True(t, result.Records[0].BetAmount.Equal(decimal.NewFromInt(10000)))
	assert.True(t, result.Records[0].BudgetAfter.Equal(decimal.NewFromInt(120000)))
	assert.True(t, result.Records[1].BetAmount.Equal(decimal.NewFromInt(12000)))
	assert.True(t, report.FinalBudget.Equal(decimal.NewFromInt(108000)))
	assert.Equal(t, 2, report.TotalBets)
	assert.Equal(t, 1, report.TotalWins)
	assert.InDelta(t, 8.0, report.ROI, 1e-9)
	repo.AssertExpectations(t)
}

func TestBacktestServiceAppliesOverrides(t *testing.T) {
	day1 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)

	repo := new(mockRaceRepository)
	repo.On("GetByDateRange", mock.Anything, start, end).
		Return([]*models.Race{settledRace("r1", day1, "a")}, nil)
	reports := &recordingReportStore{}

	budget := decimal.NewFromInt(50000)
	minEV := 1.6
	highEV := 1.6
	persist := true
	svc := newTestBacktestService(t, repo, reports)
	report, _, err := svc.Run(context.Background(), backtest.Overrides{
		StartDate:        "2024-06-01",
		EndDate:          "2024-06-02",
		InitialBudget:    &budget,
		MinExpectedValue: &minEV,
		HighConfidenceEV: &highEV,
		Persist:          &persist,
	})
	require.NoError(t, err)

	assert.True(t, report.InitialBudget.Equal(budget))
	assert.True(t, report.FinalBudget.Equal(budget))
	assert.Equal(t, 0, report.TotalBets)
	assert.Equal(t, 1, report.NumRaces)
	require.Len(t, reports.saved, 1)
	assert.Equal(t, report.RunID, reports.saved[0].RunID)
	repo.AssertExpectations(t)
}

func TestBacktestServiceRejectsInvalidOverrides(t *testing.T) {
	repo := new(mockRaceRepository)
	svc := newTestBacktestService(t, repo, nil)

	_, _, err := svc.Run(context.Background(), backtest.Overrides{
		StartDate: "2024-07-01",
		EndDate:   "2024-06-01",
	})

	var cfgErr *models.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
	repo.AssertNotCalled(t, "GetByDateRange", mock.Anything, mock.Anything, mock.Anything)
}

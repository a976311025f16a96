package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/takashi5144/keiba-3/internal/models"
)

func openTestRepositories(t *testing.T) *Repositories {
	t.Helper()
	repos, err := NewSQLiteRepositories(filepath.Join(t.TempDir(), "keiba.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repos.Close() })
	return repos
}

func testRace(id string, date time.Time) *models.Race {
	a := models.NewCandidate("h1", 0.5, 3.0)
	a.HorseName = "Alpha"
	a.PostPosition = 1
	b := models.NewCandidate("h2", 0.3, 4.0)
	b.PostPosition = 2
	c := models.HorseCandidate{HorseID: "h3", PostPosition: 3}
	return &models.Race{
		RaceID:     id,
		RaceDate:   date,
		Place:      "Tokyo",
		RaceNumber: 11,
		RaceName:   "Test Stakes",
		Candidates: []models.HorseCandidate{c, b, a},
	}
}

func TestSQLiteRaceRoundTrip(t *testing.T) {
	repos := openTestRepositories(t)
	ctx := context.Background()
	date := time.Date(2024, 5, 26, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repos.Race.Create(ctx, testRace("202405260511", date)))

	race, err := repos.Race.GetByID(ctx, "202405260511")
	require.NoError(t, err)
	assert.Equal(t, "Tokyo", race.Place)
	assert.Equal(t, 11, race.RaceNumber)
	assert.True(t, race.RaceDate.Equal(date))
	require.Len(t, race.Candidates, 3)

	// ordered by post position
	assert.Equal(t, "h1", race.Candidates[0].HorseID)
	assert.Equal(t, "Alpha", race.Candidates[0].HorseName)
	require.NotNil(t, race.Candidates[0].WinProbability)
	assert.InDelta(t, 0.5, *race.Candidates[0].WinProbability, 1e-12)
	assert.Nil(t, race.Candidates[2].WinProbability)
	assert.Nil(t, race.Candidates[2].Odds)
	assert.False(t, race.IsSettled())
}

func TestSQLiteGetByIDNotFound(t *testing.T) {
	repos := openTestRepositories(t)

	_, err := repos.Race.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSQLiteGetByDateRangeOrdering(t *testing.T) {
	repos := openTestRepositories(t)
	ctx := context.Background()
	d1 := time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)
	d3 := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)

	for _, r := range []*models.Race{
		testRace("b", d2), testRace("c", d1), testRace("a", d2), testRace("z", d3),
	} {
		require.NoError(t, repos.Race.Create(ctx, r))
	}

	races, err := repos.Race.GetByDateRange(ctx, d1, d2)
	require.NoError(t, err)
	require.Len(t, races, 3)
	assert.Equal(t, "c", races[0].RaceID)
	assert.Equal(t, "a", races[1].RaceID)
	assert.Equal(t, "b", races[2].RaceID)
	for _, r := range races {
		assert.Len(t, r.Candidates, 3)
	}

	day, err := repos.Race.GetByDate(ctx, d3)
	require.NoError(t, err)
	require.Len(t, day, 1)
	assert.Equal(t, "z", day[0].RaceID)
}

func TestSQLiteSetWinnerAppendOnly(t *testing.T) {
	repos := openTestRepositories(t)
	ctx := context.Background()
	require.NoError(t, repos.Race.Create(ctx, testRace("r1", time.Now())))

	require.NoError(t, repos.Race.SetWinner(ctx, "r1", "h1"))
	err := repos.Race.SetWinner(ctx, "r1", "h2")
	assert.ErrorIs(t, err, models.ErrRaceAlreadySettled)
	assert.ErrorIs(t, repos.Race.SetWinner(ctx, "nope", "h1"), models.ErrNotFound)

	race, err := repos.Race.GetByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "h1", race.ActualWinnerID)
}

func TestSQLiteUpdateProbabilities(t *testing.T) {
	repos := openTestRepositories(t)
	ctx := context.Background()
	require.NoError(t, repos.Race.Create(ctx, testRace("r1", time.Now())))

	require.NoError(t, repos.Race.UpdateProbabilities(ctx, "r1", map[string]float64{"h3": 0.2}))
	race, err := repos.Race.GetByID(ctx, "r1")
	require.NoError(t, err)
	c, ok := race.Candidate("h3")
	require.True(t, ok)
	require.NotNil(t, c.WinProbability)
	assert.InDelta(t, 0.2, *c.WinProbability, 1e-12)

	err = repos.Race.UpdateProbabilities(ctx, "r1", map[string]float64{"ghost": 0.1})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSQLiteReports(t *testing.T) {
	repos := openTestRepositories(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	older := &models.BacktestReport{
		Period:        models.Period{Start: "2024-01-01", End: "2024-03-31"},
		InitialBudget: decimal.NewFromInt(100000),
		FinalBudget:   decimal.NewFromInt(120000),
		ROI:           20,
		GeneratedAt:   base,
	}
	newer := &models.BacktestReport{
		RunID:         uuid.New(),
		Period:        models.Period{Start: "2024-04-01", End: "2024-04-30"},
		InitialBudget: decimal.NewFromInt(100000),
		FinalBudget:   decimal.NewFromInt(90000),
		ROI:           -10,
		GeneratedAt:   base.Add(time.Hour),
	}
	require.NoError(t, repos.Report.SaveReport(ctx, older))
	require.NoError(t, repos.Report.SaveReport(ctx, newer))
	assert.NotEqual(t, uuid.Nil, older.RunID)

	got, err := repos.Report.GetReport(ctx, older.RunID)
	require.NoError(t, err)
	assert.True(t, got.FinalBudget.Equal(decimal.NewFromInt(120000)))
	assert.Equal(t, "2024-01-01", got.Period.Start)

	list, err := repos.Report.ListReports(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.RunID, list[0].RunID)

	_, err = repos.Report.GetReport(ctx, uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSQLiteGetByDateRangeBeyondVariableLimit(t *testing.T) {
	if testing.Short() {
		t.Skip("bulk insert")
	}
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "bulk.db"))
	require.NoError(t, err)
	defer store.Close()

	const numRaces = 33000
	start := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	tx, err := store.db.Begin()
	require.NoError(t, err)
	raceStmt, err := tx.Prepare(`INSERT INTO races (race_id, race_date, place, race_number, race_name) VALUES (?, ?, '', 1, '')`)
	require.NoError(t, err)
	candStmt, err := tx.Prepare(`INSERT INTO race_candidates (race_id, horse_id, horse_name, post_position, win_probability, odds) VALUES (?, 'h1', '', 1, 0.5, 3.0)`)
	require.NoError(t, err)
	for i := 0; i < numRaces; i++ {
		id := fmt.Sprintf("r%06d", i)
		_, err := raceStmt.Exec(id, start.AddDate(0, 0, i).Format(dateLayout))
		require.NoError(t, err)
		_, err = candStmt.Exec(id)
		require.NoError(t, err)
	}
	require.NoError(t, tx.Commit())

	races, err := store.GetByDateRange(context.Background(), start, start.AddDate(0, 0, numRaces))
	require.NoError(t, err)
	require.Len(t, races, numRaces)
	assert.Equal(t, "r000000", races[0].RaceID)
	for _, race := range races {
		require.Len(t, race.Candidates, 1, race.RaceID)
	}
}

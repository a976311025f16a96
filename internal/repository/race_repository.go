package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/takashi5144/keiba-3/internal/database"
	"github.com/takashi5144/keiba-3/internal/models"
)

const (
	errScanRace      = "failed to scan race: %w"
	errScanCandidate = "failed to scan candidate: %w"
)

const selectRaceColumns = `
	SELECT race_id, race_date, place, race_number, race_name, actual_winner_id
	FROM races`

// PostgresRaceRepository implements RaceRepository for PostgreSQL
type PostgresRaceRepository struct {
	db *database.DB
}

// NewPostgresRaceRepository creates a new race repository
func NewPostgresRaceRepository(db *database.DB) RaceRepository {
	return &PostgresRaceRepository{db: db}
}

// Create inserts a race and its candidates in one transaction
func (r *PostgresRaceRepository) Create(ctx context.Context, race *models.Race) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO races (race_id, race_date, place, race_number, race_name, actual_winner_id)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			race.RaceID, dayBounds(race.RaceDate), race.Place, race.RaceNumber, race.RaceName, race.ActualWinnerID,
		)
		if err != nil {
			return fmt.Errorf("failed to create race: %w", err)
		}

		batch := &pgx.Batch{}
		for _, c := range race.Candidates {
			batch.Queue(`
				INSERT INTO race_candidates (race_id, horse_id, horse_name, post_position, win_probability, odds)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				race.RaceID, c.HorseID, c.HorseName, c.PostPosition, c.WinProbability, c.Odds,
			)
		}
		results := tx.SendBatch(ctx, batch)
		defer results.Close()
		for range race.Candidates {
			if _, err := results.Exec(); err != nil {
				return fmt.Errorf("failed to create candidate: %w", err)
			}
		}
		return nil
	})
}

// GetByID retrieves a race with its candidates
func (r *PostgresRaceRepository) GetByID(ctx context.Context, raceID string) (*models.Race, error) {
	race := &models.Race{}
	err := r.db.GetPool().QueryRow(ctx, selectRaceColumns+` WHERE race_id = $1`, raceID).Scan(
		&race.RaceID, &race.RaceDate, &race.Place, &race.RaceNumber, &race.RaceName, &race.ActualWinnerID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get race: %w", err)
	}

	if err := r.attachCandidates(ctx, []*models.Race{race}); err != nil {
		return nil, err
	}
	return race, nil
}

// GetByDate retrieves every race held on date
func (r *PostgresRaceRepository) GetByDate(ctx context.Context, date time.Time) ([]*models.Race, error) {
	return r.GetByDateRange(ctx, date, date)
}

// GetByDateRange retrieves races between start and end inclusive
func (r *PostgresRaceRepository) GetByDateRange(ctx context.Context, start, end time.Time) ([]*models.Race, error) {
	rows, err := r.db.GetPool().Query(ctx,
		selectRaceColumns+` WHERE race_date >= $1 AND race_date <= $2 ORDER BY race_date ASC, race_id ASC`,
		dayBounds(start), dayBounds(end),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query races: %w", err)
	}
	defer rows.Close()

	var races []*models.Race
	for rows.Next() {
		race := &models.Race{}
		if err := rows.Scan(
			&race.RaceID, &race.RaceDate, &race.Place, &race.RaceNumber, &race.RaceName, &race.ActualWinnerID,
		); err != nil {
			return nil, fmt.Errorf(errScanRace, err)
		}
		races = append(races, race)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.attachCandidates(ctx, races); err != nil {
		return nil, err
	}
	return races, nil
}

// SetWinner records the winner once; a settled race is never rewritten
func (r *PostgresRaceRepository) SetWinner(ctx context.Context, raceID, winnerID string) error {
	if winnerID == "" {
		return fmt.Errorf("winner id is required")
	}
	tag, err := r.db.GetPool().Exec(ctx,
		`UPDATE races SET actual_winner_id = $2 WHERE race_id = $1 AND actual_winner_id = ''`,
		raceID, winnerID,
	)
	if err != nil {
		return fmt.Errorf("failed to set winner: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.db.GetPool().QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM races WHERE race_id = $1)`, raceID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check race: %w", err)
	}
	if !exists {
		return models.ErrNotFound
	}
	return fmt.Errorf("%w: %s", models.ErrRaceAlreadySettled, raceID)
}

// UpdateProbabilities stores model probabilities for the given horses
func (r *PostgresRaceRepository) UpdateProbabilities(ctx context.Context, raceID string, probabilities map[string]float64) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		for horseID, p := range probabilities {
			tag, err := tx.Exec(ctx,
				`UPDATE race_candidates SET win_probability = $3 WHERE race_id = $1 AND horse_id = $2`,
				raceID, horseID, p,
			)
			if err != nil {
				return fmt.Errorf("failed to update probability: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("%w: candidate %s in race %s", models.ErrNotFound, horseID, raceID)
			}
		}
		return nil
	})
}

func (r *PostgresRaceRepository) attachCandidates(ctx context.Context, races []*models.Race) error {
	if len(races) == 0 {
		return nil
	}

	ids := make([]string, len(races))
	byID := make(map[string]*models.Race, len(races))
	for i, race := range races {
		ids[i] = race.RaceID
		byID[race.RaceID] = race
	}

	rows, err := r.db.GetPool().Query(ctx, `
		SELECT race_id, horse_id, horse_name, post_position, win_probability, odds
		FROM race_candidates
		WHERE race_id = ANY($1)
		ORDER BY race_id, post_position, horse_id`, ids)
	if err != nil {
		return fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var raceID string
		var c models.HorseCandidate
		if err := rows.Scan(&raceID, &c.HorseID, &c.HorseName, &c.PostPosition, &c.WinProbability, &c.Odds); err != nil {
			return fmt.Errorf(errScanCandidate, err)
		}
		if race, ok := byID[raceID]; ok {
			race.Candidates = append(race.Candidates, c)
		}
	}
	return rows.Err()
}

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/takashi5144/keiba-3/internal/models"
	_ "modernc.org/sqlite"
)

// SQLiteStore is a single-file race and report store for local backtests
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens the database at path and applies the schema
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}

	// WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if _, err := db.Exec(sqliteSchemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("schema migration: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Create inserts a race and its candidates
func (s *SQLiteStore) Create(ctx context.Context, race *models.Race) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO races (race_id, race_date, place, race_number, race_name, actual_winner_id)
			VALUES (?, ?, ?, ?, ?, ?)`,
			race.RaceID, race.RaceDate.Format(dateLayout), race.Place, race.RaceNumber,
			race.RaceName, race.ActualWinnerID,
		); err != nil {
			return fmt.Errorf("failed to create race: %w", err)
		}

		for _, c := range race.Candidates {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO race_candidates (race_id, horse_id, horse_name, post_position, win_probability, odds)
				VALUES (?, ?, ?, ?, ?, ?)`,
				race.RaceID, c.HorseID, c.HorseName, c.PostPosition, nullFloat(c.WinProbability), nullFloat(c.Odds),
			); err != nil {
				return fmt.Errorf("failed to create candidate: %w", err)
			}
		}
		return nil
	})
}

// GetByID retrieves a race with its candidates
func (s *SQLiteStore) GetByID(ctx context.Context, raceID string) (*models.Race, error) {
	races, err := s.queryRaces(ctx, `WHERE r.race_id = ?`, raceID)
	if err != nil {
		return nil, err
	}
	if len(races) == 0 {
		return nil, models.ErrNotFound
	}
	return races[0], nil
}

// GetByDate retrieves every race held on date
func (s *SQLiteStore) GetByDate(ctx context.Context, date time.Time) ([]*models.Race, error) {
	return s.GetByDateRange(ctx, date, date)
}

// GetByDateRange retrieves races between start and end inclusive
func (s *SQLiteStore) GetByDateRange(ctx context.Context, start, end time.Time) ([]*models.Race, error) {
	return s.queryRaces(ctx, `WHERE r.race_date >= ? AND r.race_date <= ?`,
		start.Format(dateLayout), end.Format(dateLayout))
}

// SetWinner records the winner once
func (s *SQLiteStore) SetWinner(ctx context.Context, raceID, winnerID string) error {
	if winnerID == "" {
		return fmt.Errorf("winner id is required")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE races SET actual_winner_id = ? WHERE race_id = ? AND actual_winner_id = ''`,
		winnerID, raceID)
	if err != nil {
		return fmt.Errorf("failed to set winner: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM races WHERE race_id = ?`, raceID).Scan(&count); err != nil {
		return fmt.Errorf("failed to check race: %w", err)
	}
	if count == 0 {
		return models.ErrNotFound
	}
	return fmt.Errorf("%w: %s", models.ErrRaceAlreadySettled, raceID)
}

// UpdateProbabilities stores model probabilities for the given horses
func (s *SQLiteStore) UpdateProbabilities(ctx context.Context, raceID string, probabilities map[string]float64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for horseID, p := range probabilities {
			res, err := tx.ExecContext(ctx,
				`UPDATE race_candidates SET win_probability = ? WHERE race_id = ? AND horse_id = ?`,
				p, raceID, horseID)
			if err != nil {
				return fmt.Errorf("failed to update probability: %w", err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return fmt.Errorf("%w: candidate %s in race %s", models.ErrNotFound, horseID, raceID)
			}
		}
		return nil
	})
}

// queryRaces loads races matching where, then their candidates with the
// same predicate joined on races. where must reference races as r.
func (s *SQLiteStore) queryRaces(ctx context.Context, where string, args ...any) ([]*models.Race, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.race_id, r.race_date, r.place, r.race_number, r.race_name, r.actual_winner_id
		FROM races r `+where+` ORDER BY r.race_date ASC, r.race_id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query races: %w", err)
	}
	defer rows.Close()

	var races []*models.Race
	byID := make(map[string]*models.Race)
	for rows.Next() {
		race := &models.Race{}
		var date string
		if err := rows.Scan(&race.RaceID, &date, &race.Place, &race.RaceNumber,
			&race.RaceName, &race.ActualWinnerID); err != nil {
			return nil, fmt.Errorf(errScanRace, err)
		}
		if race.RaceDate, err = time.Parse(dateLayout, date); err != nil {
			return nil, fmt.Errorf("invalid race date %q: %w", date, err)
		}
		races = append(races, race)
		byID[race.RaceID] = race
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(races) == 0 {
		return races, nil
	}

	crows, err := s.db.QueryContext(ctx, `
		SELECT c.race_id, c.horse_id, c.horse_name, c.post_position, c.win_probability, c.odds
		FROM race_candidates c
		JOIN races r ON r.race_id = c.race_id `+where+`
		ORDER BY c.race_id, c.post_position, c.horse_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer crows.Close()

	for crows.Next() {
		var raceID string
		var c models.HorseCandidate
		var p, o sql.NullFloat64
		if err := crows.Scan(&raceID, &c.HorseID, &c.HorseName, &c.PostPosition, &p, &o); err != nil {
			return nil, fmt.Errorf(errScanCandidate, err)
		}
		c.WinProbability = floatPtr(p)
		c.Odds = floatPtr(o)
		if race, ok := byID[raceID]; ok {
			race.Candidates = append(race.Candidates, c)
		}
	}
	return races, crows.Err()
}

// SaveReport inserts a report, assigning a run id if it has none
func (s *SQLiteStore) SaveReport(ctx context.Context, report *models.BacktestReport) error {
	if report.RunID == uuid.Nil {
		report.RunID = uuid.New()
	}
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO backtest_reports (id, period_start, period_end, final_budget, roi, report, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		report.RunID.String(), report.Period.Start, report.Period.End,
		report.FinalBudget.String(), report.ROI, string(body), report.GeneratedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// GetReport retrieves a report by run id
func (s *SQLiteStore) GetReport(ctx context.Context, id uuid.UUID) (*models.BacktestReport, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT report FROM backtest_reports WHERE id = ?`, id.String()).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return decodeReport([]byte(body))
}

// ListReports returns the most recent reports first
func (s *SQLiteStore) ListReports(ctx context.Context, limit int) ([]*models.BacktestReport, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT report FROM backtest_reports ORDER BY generated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var reports []*models.BacktestReport
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		report, err := decodeReport([]byte(body))
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

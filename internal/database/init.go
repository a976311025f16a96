package database

import (
	"context"
	"fmt"

	"github.com/takashi5144/keiba-3/internal/config"
)

// schemaDDL creates the race and report tables if they do not exist
const schemaDDL = `
CREATE TABLE IF NOT EXISTS races (
	race_id          TEXT PRIMARY KEY,
	race_date        DATE NOT NULL,
	place            TEXT NOT NULL DEFAULT '',
	race_number      INTEGER NOT NULL DEFAULT 0,
	race_name        TEXT NOT NULL DEFAULT '',
	actual_winner_id TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_races_date ON races (race_date, race_id);

CREATE TABLE IF NOT EXISTS race_candidates (
	race_id         TEXT NOT NULL REFERENCES races (race_id) ON DELETE CASCADE,
	horse_id        TEXT NOT NULL,
	horse_name      TEXT NOT NULL DEFAULT '',
	post_position   INTEGER NOT NULL DEFAULT 0,
	win_probability DOUBLE PRECISION,
	odds            DOUBLE PRECISION,
	PRIMARY KEY (race_id, horse_id)
);

CREATE TABLE IF NOT EXISTS backtest_reports (
	id           UUID PRIMARY KEY,
	period_start TEXT NOT NULL,
	period_end   TEXT NOT NULL,
	final_budget NUMERIC NOT NULL,
	roi          DOUBLE PRECISION NOT NULL,
	report       JSONB NOT NULL,
	generated_at TIMESTAMPTZ NOT NULL
);
`

// Initialize creates a database connection pool and applies the schema
func Initialize(ctx context.Context, cfg *config.Config) (*DB, error) {
	db, err := NewDB(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate applies the schema DDL
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

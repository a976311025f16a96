package repository

const sqliteSchemaDDL = `
CREATE TABLE IF NOT EXISTS races (
	race_id          TEXT PRIMARY KEY,
	race_date        TEXT NOT NULL,
	place            TEXT NOT NULL DEFAULT '',
	race_number      INTEGER NOT NULL DEFAULT 0,
	race_name        TEXT NOT NULL DEFAULT '',
	actual_winner_id TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_races_date ON races(race_date, race_id);

CREATE TABLE IF NOT EXISTS race_candidates (
	race_id         TEXT NOT NULL REFERENCES races(race_id) ON DELETE CASCADE,
	horse_id        TEXT NOT NULL,
	horse_name      TEXT NOT NULL DEFAULT '',
	post_position   INTEGER NOT NULL DEFAULT 0,
	win_probability REAL,
	odds            REAL,
	PRIMARY KEY (race_id, horse_id)
);

CREATE TABLE IF NOT EXISTS backtest_reports (
	id           TEXT PRIMARY KEY,
	period_start TEXT NOT NULL,
	period_end   TEXT NOT NULL,
	final_budget TEXT NOT NULL,
	roi          REAL NOT NULL,
	report       TEXT NOT NULL,
	generated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reports_generated ON backtest_reports(generated_at);
`

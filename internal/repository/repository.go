package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/takashi5144/keiba-3/internal/database"
)

const dateLayout = "2006-01-02"

// Repositories holds all repository implementations
type Repositories struct {
	Race   RaceRepository
	Report ReportRepository

	ping  func(ctx context.Context) error
	close func() error
}

// NewRepositories creates the PostgreSQL-backed repositories
func NewRepositories(db *database.DB) (*Repositories, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &Repositories{
		Race:   NewPostgresRaceRepository(db),
		Report: NewPostgresReportRepository(db),
		ping:   db.HealthCheck,
		close:  db.Close,
	}, nil
}

// NewSQLiteRepositories opens (or creates) a SQLite file and returns
// repositories backed by it
func NewSQLiteRepositories(path string) (*Repositories, error) {
	store, err := OpenSQLite(path)
	if err != nil {
		return nil, err
	}

	return &Repositories{
		Race:   store,
		Report: store,
		ping:   store.Ping,
		close:  store.Close,
	}, nil
}

// Ping checks that the underlying storage is reachable
func (r *Repositories) Ping(ctx context.Context) error {
	if r.ping == nil {
		return nil
	}
	return r.ping(ctx)
}

// Close releases the underlying storage
func (r *Repositories) Close() error {
	if r.close == nil {
		return nil
	}
	return r.close()
}

// dayBounds keeps the calendar day of t as midnight UTC
func dayBounds(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

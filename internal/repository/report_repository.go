package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/takashi5144/keiba-3/internal/database"
	"github.com/takashi5144/keiba-3/internal/models"
)

// PostgresReportRepository implements ReportRepository for PostgreSQL.
// The full report is kept as JSONB; headline columns are indexed copies.
type PostgresReportRepository struct {
	db *database.DB
}

// NewPostgresReportRepository creates a new report repository
func NewPostgresReportRepository(db *database.DB) ReportRepository {
	return &PostgresReportRepository{db: db}
}

// SaveReport inserts a report, assigning a run id if it has none
func (r *PostgresReportRepository) SaveReport(ctx context.Context, report *models.BacktestReport) error {
	if report.RunID == uuid.Nil {
		report.RunID = uuid.New()
	}
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	_, err = r.db.GetPool().Exec(ctx, `
		INSERT INTO backtest_reports (id, period_start, period_end, final_budget, roi, report, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		report.RunID, report.Period.Start, report.Period.End, report.FinalBudget.String(),
		report.ROI, body, report.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// GetReport retrieves a report by run id
func (r *PostgresReportRepository) GetReport(ctx context.Context, id uuid.UUID) (*models.BacktestReport, error) {
	var body []byte
	err := r.db.GetPool().QueryRow(ctx, `SELECT report FROM backtest_reports WHERE id = $1`, id).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return decodeReport(body)
}

// ListReports returns the most recent reports first
func (r *PostgresReportRepository) ListReports(ctx context.Context, limit int) ([]*models.BacktestReport, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.GetPool().Query(ctx,
		`SELECT report FROM backtest_reports ORDER BY generated_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var reports []*models.BacktestReport
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		report, err := decodeReport(body)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

func decodeReport(body []byte) (*models.BacktestReport, error) {
	report := &models.BacktestReport{}
	if err := json.Unmarshal(body, report); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	return report, nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/balalab/portal/internal/models"
)

const reportColumns = `id, file_name, original_name, file_type, file_size, user_email, user_id, uploaded_by, created_at`

// PostgresReportRepository implements report metadata persistence against
// a PostgreSQL database.
type PostgresReportRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresReportRepository creates a PostgresReportRepository using the
// provided *sql.DB. db must be a valid connection to a PostgreSQL instance.
func NewPostgresReportRepository(db *sql.DB) *PostgresReportRepository {
	return &PostgresReportRepository{DB: db}
}

// Insert writes one report metadata row.
func (s *PostgresReportRepository) Insert(ctx context.Context, report *models.Report) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO reports (id, file_name, original_name, file_type, file_size, user_email, user_id, uploaded_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, report.ID, report.FileName, report.OriginalName, report.FileType, report.FileSize,
		report.UserEmail, report.UserID, report.UploadedBy, report.CreatedAt)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}
	return nil
}

// ListAll fetches every report, newest first.
func (s *PostgresReportRepository) ListAll(ctx context.Context) ([]models.Report, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT `+reportColumns+` FROM reports ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("ListAll: %w", err)
	}
	return scanReports(rows)
}

// ListByUser fetches the reports owned by the given user, newest first.
func (s *PostgresReportRepository) ListByUser(ctx context.Context, userID string) ([]models.Report, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT `+reportColumns+` FROM reports WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("ListByUser: %w", err)
	}
	return scanReports(rows)
}

// GetByID retrieves a single report. Returns sql.ErrNoRows when absent.
func (s *PostgresReportRepository) GetByID(ctx context.Context, id string) (*models.Report, error) {
	var r models.Report
	err := s.DB.QueryRowContext(ctx, `
		SELECT `+reportColumns+` FROM reports WHERE id = $1
	`, id).Scan(&r.ID, &r.FileName, &r.OriginalName, &r.FileType, &r.FileSize,
		&r.UserEmail, &r.UserID, &r.UploadedBy, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Delete removes one report row by ID.
func (s *PostgresReportRepository) Delete(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM reports WHERE id = $1`, id)
	return err
}

func scanReports(rows *sql.Rows) ([]models.Report, error) {
	defer rows.Close()

	var reports []models.Report
	for rows.Next() {
		var r models.Report
		if err := rows.Scan(&r.ID, &r.FileName, &r.OriginalName, &r.FileType, &r.FileSize,
			&r.UserEmail, &r.UserID, &r.UploadedBy, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return reports, nil
}

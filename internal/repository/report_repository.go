package repository

import (
	"context"
	"fmt"

	"github.com/ammarsecurity/nexchat/internal/models"
	"github.com/ammarsecurity/nexchat/pkg/database"
)

type ReportRepository struct {
	db *database.DB
}

func NewReportRepository(db *database.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Exists reports whether reporter has already reported reported.
func (r *ReportRepository) Exists(ctx context.Context, reporterID, reportedID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM reports WHERE reporter_id = $1 AND reported_id = $2
		)
	`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, reporterID, reportedID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check report: %w", err)
	}

	return exists, nil
}

func (r *ReportRepository) Create(ctx context.Context, reporterID, reportedID, reason string) (*models.Report, error) {
	query := `
		INSERT INTO reports (reporter_id, reported_id, reason)
		VALUES ($1, $2, $3)
		RETURNING id, reporter_id, reported_id, reason, created_at
	`

	report := &models.Report{}
	err := r.db.QueryRowContext(ctx, query, reporterID, reportedID, reason).Scan(
		&report.ID,
		&report.ReporterID,
		&report.ReportedID,
		&report.Reason,
		&report.CreatedAt,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to create report: %w", err)
	}

	return report, nil
}

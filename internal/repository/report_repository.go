package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/uext/extensions-api/internal/models"
)

// ReportRepository aggregates enrollment and account data for reporting.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// FinancialSummary returns per-offering enrollment counts and revenue.
// Revenue sums the amount of APPROVED enrollments only.
func (r *ReportRepository) FinancialSummary(ctx context.Context) ([]models.FinancialReportRow, error) {
	const query = `SELECT o.id AS offering_id, o.title AS offering_title, o.kind AS offering_kind, o.capacity,
        COUNT(*) FILTER (WHERE e.state = 'PENDING') AS pending,
        COUNT(*) FILTER (WHERE e.state = 'APPROVED') AS approved,
        COUNT(*) FILTER (WHERE e.state = 'REJECTED') AS rejected,
        COALESCE(SUM(e.amount) FILTER (WHERE e.state = 'APPROVED'), 0) AS revenue
        FROM offerings o
        LEFT JOIN enrollments e ON e.offering_id = o.id
        GROUP BY o.id, o.title, o.kind, o.capacity
        ORDER BY revenue DESC, o.title ASC`
	var rows []models.FinancialReportRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("financial summary: %w", err)
	}
	return rows, nil
}

// UserSummary returns registered account counts per role and program.
func (r *ReportRepository) UserSummary(ctx context.Context) ([]models.UserReportRow, error) {
	const query = `SELECT a.role, p.name AS program_name, COUNT(*) AS count
        FROM accounts a
        LEFT JOIN programs p ON p.id = a.program_id
        GROUP BY a.role, p.name
        ORDER BY a.role ASC, p.name ASC NULLS FIRST`
	var rows []models.UserReportRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("user summary: %w", err)
	}
	return rows, nil
}

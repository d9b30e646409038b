package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/uext/extensions-api/internal/models"
)

// ChangeRequestRepository persists feedback tickets.
type ChangeRequestRepository struct {
	db *sqlx.DB
}

// NewChangeRequestRepository constructs the repository.
func NewChangeRequestRepository(db *sqlx.DB) *ChangeRequestRepository {
	return &ChangeRequestRepository{db: db}
}

// Create persists a new ticket in OPEN state.
func (r *ChangeRequestRepository) Create(ctx context.Context, req *models.ChangeRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	req.UpdatedAt = now
	if req.Status == "" {
		req.Status = models.ChangeRequestOpen
	}
	const query = `INSERT INTO change_requests (id, account_id, kind, subject, detail, status, created_at, updated_at)
        VALUES (:id, :account_id, :kind, :subject, :detail, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create change request: %w", err)
	}
	return nil
}

// FindByID returns a ticket by its ID.
func (r *ChangeRequestRepository) FindByID(ctx context.Context, id string) (*models.ChangeRequest, error) {
	const query = `SELECT id, account_id, kind, subject, detail, status, created_at, updated_at
        FROM change_requests WHERE id = $1`
	var req models.ChangeRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// List returns tickets filtered by the provided criteria.
func (r *ChangeRequestRepository) List(ctx context.Context, filter models.ChangeRequestFilter) ([]models.ChangeRequest, int, error) {
	var conditions []string
	var args []interface{}

	if filter.AccountID != "" {
		conditions = append(conditions, fmt.Sprintf("account_id = $%d", len(args)+1))
		args = append(args, filter.AccountID)
	}
	if filter.Kind != "" {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", len(args)+1))
		args = append(args, filter.Kind)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, account_id, kind, subject, detail, status, created_at, updated_at
        FROM change_requests%s ORDER BY created_at DESC LIMIT %d OFFSET %d`, clause, size, offset)

	var requests []models.ChangeRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list change requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM change_requests%s", clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count change requests: %w", err)
	}
	return requests, total, nil
}

// UpdateStatus moves a ticket to a new review status.
func (r *ChangeRequestRepository) UpdateStatus(ctx context.Context, id string, status models.ChangeRequestStatus) error {
	const query = `UPDATE change_requests SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update change request status: %w", err)
	}
	return nil
}

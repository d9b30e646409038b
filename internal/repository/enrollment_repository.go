package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/uext/extensions-api/internal/models"
	appErrors "github.com/uext/extensions-api/pkg/errors"
)

// EnrollmentRepository handles persistence of enrollments and their proofs.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// CreateAtomic inserts an enrollment together with its payment proof inside a
// single serializable transaction. The offering row is locked first so the
// duplicate and capacity checks cannot race a concurrent insert; the
// (account, offering) unique constraint backs the duplicate check at the
// storage level as well.
func (r *EnrollmentRepository) CreateAtomic(ctx context.Context, enrollment *models.Enrollment, proof *models.PaymentProof) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin enrollment tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var capacity int
	if err := tx.GetContext(ctx, &capacity, `SELECT capacity FROM offerings WHERE id = $1 FOR UPDATE`, enrollment.OfferingID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return fmt.Errorf("lock offering: %w", err)
	}

	var exists int
	err = tx.GetContext(ctx, &exists, `SELECT 1 FROM enrollments WHERE account_id = $1 AND offering_id = $2 LIMIT 1`,
		enrollment.AccountID, enrollment.OfferingID)
	if err == nil {
		return appErrors.ErrDuplicateEnrollment
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("check duplicate enrollment: %w", err)
	}

	var taken int
	err = tx.GetContext(ctx, &taken, `SELECT COUNT(*) FROM enrollments WHERE offering_id = $1 AND state IN ($2, $3)`,
		enrollment.OfferingID, models.EnrollmentPending, models.EnrollmentApproved)
	if err != nil {
		return fmt.Errorf("count active enrollments: %w", err)
	}
	if taken >= capacity {
		return appErrors.ErrCapacityExceeded
	}

	const insert = `INSERT INTO enrollments
        (id, account_id, offering_id, state, payment_method, amount,
         proof_filename, proof_size, proof_uploaded_at, approved_by, approved_at, created_at)
        VALUES (:id, :account_id, :offering_id, :state, :payment_method, :amount,
         :proof_filename, :proof_size, :proof_uploaded_at, :approved_by, :approved_at, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insert, enrollment); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return appErrors.ErrDuplicateEnrollment
		}
		return fmt.Errorf("insert enrollment: %w", err)
	}

	if proof != nil {
		proof.EnrollmentID = enrollment.ID
		if proof.UploadedAt.IsZero() {
			proof.UploadedAt = enrollment.CreatedAt
		}
		const insertProof = `INSERT INTO payment_proofs (enrollment_id, filename, size, content_type, data, uploaded_at)
            VALUES (:enrollment_id, :filename, :size, :content_type, :data, :uploaded_at)`
		if _, err := tx.NamedExecContext(ctx, insertProof, proof); err != nil {
			return fmt.Errorf("insert payment proof: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment: %w", err)
	}
	return nil
}

// Exists reports whether the account already holds an enrollment for the
// offering, regardless of state.
func (r *EnrollmentRepository) Exists(ctx context.Context, accountID, offeringID string) (bool, error) {
	var exists int
	err := r.db.GetContext(ctx, &exists, `SELECT 1 FROM enrollments WHERE account_id = $1 AND offering_id = $2 LIMIT 1`,
		accountID, offeringID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment exists: %w", err)
	}
	return true, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, account_id, offering_id, state, payment_method, amount,
        proof_filename, proof_size, proof_uploaded_at, approved_by, approved_at, created_at
        FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment with account and offering context.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.account_id, e.offering_id, e.state, e.payment_method, e.amount,
        e.proof_filename, e.proof_size, e.proof_uploaded_at, e.approved_by, e.approved_at, e.created_at,
        a.email AS account_email, a.full_name AS account_name, o.title AS offering_title, o.kind AS offering_kind
        FROM enrollments e
        LEFT JOIN accounts a ON a.id = e.account_id
        LEFT JOIN offerings o ON o.id = e.offering_id
        WHERE e.id = $1`
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
LEFT JOIN accounts a ON a.id = e.account_id
LEFT JOIN offerings o ON o.id = e.offering_id`
	var conditions []string
	var args []interface{}

	if filter.AccountID != "" {
		conditions = append(conditions, fmt.Sprintf("e.account_id = $%d", len(args)+1))
		args = append(args, filter.AccountID)
	}
	if filter.OfferingID != "" {
		conditions = append(conditions, fmt.Sprintf("e.offering_id = $%d", len(args)+1))
		args = append(args, filter.OfferingID)
	}
	if filter.State != "" {
		conditions = append(conditions, fmt.Sprintf("e.state = $%d", len(args)+1))
		args = append(args, filter.State)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at":     "e.created_at",
		"account_name":   "a.full_name",
		"offering_title": "o.title",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "e.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
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

	query := fmt.Sprintf(`SELECT e.id, e.account_id, e.offering_id, e.state, e.payment_method, e.amount,
        e.proof_filename, e.proof_size, e.proof_uploaded_at, e.approved_by, e.approved_at, e.created_at,
        a.email AS account_email, a.full_name AS account_name, o.title AS offering_title, o.kind AS offering_kind
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// Resolve transitions a PENDING enrollment to its terminal state. The state
// guard lives in the WHERE clause so a concurrent double-resolution loses.
func (r *EnrollmentRepository) Resolve(ctx context.Context, id string, state models.EnrollmentState, adminID string, at time.Time) error {
	const query = `UPDATE enrollments SET state = $2, approved_by = $3, approved_at = $4
        WHERE id = $1 AND state = $5`
	res, err := r.db.ExecContext(ctx, query, id, state, adminID, at, models.EnrollmentPending)
	if err != nil {
		return fmt.Errorf("resolve enrollment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolve enrollment result: %w", err)
	}
	if affected == 0 {
		return appErrors.ErrAlreadyResolved
	}
	return nil
}

// GetProof loads the stored payment proof including its bytes.
func (r *EnrollmentRepository) GetProof(ctx context.Context, enrollmentID string) (*models.PaymentProof, error) {
	const query = `SELECT enrollment_id, filename, size, content_type, data, uploaded_at
        FROM payment_proofs WHERE enrollment_id = $1`
	var proof models.PaymentProof
	if err := r.db.GetContext(ctx, &proof, query, enrollmentID); err != nil {
		return nil, err
	}
	return &proof, nil
}

// CountActive returns enrollments in seat-consuming states for an offering.
func (r *EnrollmentRepository) CountActive(ctx context.Context, offeringID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM enrollments WHERE offering_id = $1 AND state IN ($2, $3)`,
		offeringID, models.EnrollmentPending, models.EnrollmentApproved)
	if err != nil {
		return 0, fmt.Errorf("count active enrollments: %w", err)
	}
	return count, nil
}

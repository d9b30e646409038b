package repository

import (
	"context"
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

// AccountRepository handles persistence of accounts.
type AccountRepository struct {
	db *sqlx.DB
}

// NewAccountRepository constructs the repository.
func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, email, password_hash, full_name, role, program_id,
    documents_verified, verified_by, verified_at, active, created_at, updated_at`

// FindByEmail returns the account registered under the given email.
func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := fmt.Sprintf("SELECT %s FROM accounts WHERE email = $1 LIMIT 1", accountColumns)
	var account models.Account
	if err := r.db.GetContext(ctx, &account, query, email); err != nil {
		return nil, err
	}
	return &account, nil
}

// FindByID returns an account by its ID.
func (r *AccountRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	query := fmt.Sprintf("SELECT %s FROM accounts WHERE id = $1", accountColumns)
	var account models.Account
	if err := r.db.GetContext(ctx, &account, query, id); err != nil {
		return nil, err
	}
	return &account, nil
}

// Create persists a new account.
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	const query = `INSERT INTO accounts
        (id, email, password_hash, full_name, role, program_id, documents_verified, verified_by, verified_at, active, created_at, updated_at)
        VALUES (:id, :email, :password_hash, :full_name, :role, :program_id, :documents_verified, :verified_by, :verified_at, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, account); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return appErrors.Clone(appErrors.ErrConflict, "email already registered")
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// List returns accounts joined with their program names.
func (r *AccountRepository) List(ctx context.Context, filter models.AccountFilter) ([]models.AccountDetail, int, error) {
	base := `FROM accounts a LEFT JOIN programs p ON p.id = a.program_id`
	var conditions []string
	var args []interface{}

	if filter.Role != nil {
		conditions = append(conditions, fmt.Sprintf("a.role = $%d", len(args)+1))
		args = append(args, *filter.Role)
	}
	if filter.ProgramID != "" {
		conditions = append(conditions, fmt.Sprintf("a.program_id = $%d", len(args)+1))
		args = append(args, filter.ProgramID)
	}
	if filter.Verified != nil {
		conditions = append(conditions, fmt.Sprintf("a.documents_verified = $%d", len(args)+1))
		args = append(args, *filter.Verified)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(a.email ILIKE $%d OR a.full_name ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at": "a.created_at",
		"email":      "a.email",
		"full_name":  "a.full_name",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "a.created_at"
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

	query := fmt.Sprintf(`SELECT a.id, a.email, a.password_hash, a.full_name, a.role, a.program_id,
        a.documents_verified, a.verified_by, a.verified_at, a.active, a.created_at, a.updated_at,
        p.name AS program_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var accounts []models.AccountDetail
	if err := r.db.SelectContext(ctx, &accounts, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list accounts: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count accounts: %w", err)
	}
	return accounts, total, nil
}

// UpdateRoleAndProgram applies an administrative edit to role and program.
func (r *AccountRepository) UpdateRoleAndProgram(ctx context.Context, id string, role models.Role, programID *string) error {
	const query = `UPDATE accounts SET role = $2, program_id = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, role, programID, time.Now().UTC()); err != nil {
		return fmt.Errorf("update account role: %w", err)
	}
	return nil
}

// SetDocumentsVerified records the administrative verification decision.
func (r *AccountRepository) SetDocumentsVerified(ctx context.Context, id string, verified bool, adminID string, at time.Time) error {
	const query = `UPDATE accounts SET documents_verified = $2, verified_by = $3, verified_at = $4, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, verified, adminID, at); err != nil {
		return fmt.Errorf("set documents verified: %w", err)
	}
	return nil
}

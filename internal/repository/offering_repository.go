package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/uext/extensions-api/internal/models"
	appErrors "github.com/uext/extensions-api/pkg/errors"
)

// OfferingRepository handles persistence of courses and events.
type OfferingRepository struct {
	db *sqlx.DB
}

// NewOfferingRepository constructs the repository.
func NewOfferingRepository(db *sqlx.DB) *OfferingRepository {
	return &OfferingRepository{db: db}
}

const offeringColumns = `id, kind, title, description, category_id, organizer_id,
    capacity, audience, is_free, price, created_at, updated_at`

// Create stores the offering and its program associations in one transaction.
func (r *OfferingRepository) Create(ctx context.Context, offering *models.Offering) error {
	if offering.ID == "" {
		offering.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	offering.CreatedAt = now
	offering.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin offering tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insert = `INSERT INTO offerings
        (id, kind, title, description, category_id, organizer_id, capacity, audience, is_free, price, created_at, updated_at)
        VALUES (:id, :kind, :title, :description, :category_id, :organizer_id, :capacity, :audience, :is_free, :price, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insert, offering); err != nil {
		return fmt.Errorf("insert offering: %w", err)
	}

	if err := replacePrograms(ctx, tx, offering.ID, offering.ProgramIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit offering: %w", err)
	}
	return nil
}

// Update rewrites the offering row and its program associations.
func (r *OfferingRepository) Update(ctx context.Context, offering *models.Offering) error {
	offering.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin offering tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const update = `UPDATE offerings SET kind = :kind, title = :title, description = :description,
        category_id = :category_id, organizer_id = :organizer_id, capacity = :capacity,
        audience = :audience, is_free = :is_free, price = :price, updated_at = :updated_at
        WHERE id = :id`
	res, err := tx.NamedExecContext(ctx, update, offering)
	if err != nil {
		return fmt.Errorf("update offering: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}

	if err := replacePrograms(ctx, tx, offering.ID, offering.ProgramIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit offering: %w", err)
	}
	return nil
}

// Delete removes an offering only when no enrollments reference it.
func (r *OfferingRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin offering tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var count int
	if err := tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM enrollments WHERE offering_id = $1`, id); err != nil {
		return fmt.Errorf("count enrollments: %w", err)
	}
	if count > 0 {
		return appErrors.ErrOfferingHasEnrollees
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM offering_programs WHERE offering_id = $1`, id); err != nil {
		return fmt.Errorf("delete offering programs: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM offerings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete offering: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit offering delete: %w", err)
	}
	return nil
}

// FindByID returns an offering with its program associations loaded.
func (r *OfferingRepository) FindByID(ctx context.Context, id string) (*models.Offering, error) {
	query := fmt.Sprintf("SELECT %s FROM offerings WHERE id = $1", offeringColumns)
	var offering models.Offering
	if err := r.db.GetContext(ctx, &offering, query, id); err != nil {
		return nil, err
	}
	if err := r.db.SelectContext(ctx, &offering.ProgramIDs, `SELECT program_id FROM offering_programs WHERE offering_id = $1`, id); err != nil {
		return nil, fmt.Errorf("load offering programs: %w", err)
	}
	return &offering, nil
}

// List returns offerings filtered by the provided criteria.
func (r *OfferingRepository) List(ctx context.Context, filter models.OfferingFilter) ([]models.Offering, int, error) {
	var conditions []string
	var args []interface{}

	if filter.Kind != "" {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", len(args)+1))
		args = append(args, filter.Kind)
	}
	if filter.CategoryID != "" {
		conditions = append(conditions, fmt.Sprintf("category_id = $%d", len(args)+1))
		args = append(args, filter.CategoryID)
	}
	if filter.Audience != "" {
		conditions = append(conditions, fmt.Sprintf("audience = $%d", len(args)+1))
		args = append(args, filter.Audience)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("title ILIKE $%d", len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at": "created_at",
		"title":      "title",
		"capacity":   "capacity",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "created_at"
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

	query := fmt.Sprintf("SELECT %s FROM offerings%s ORDER BY %s %s LIMIT %d OFFSET %d",
		offeringColumns, clause, orderBy, order, size, offset)

	var offerings []models.Offering
	if err := r.db.SelectContext(ctx, &offerings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list offerings: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM offerings%s", clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count offerings: %w", err)
	}
	return offerings, total, nil
}

// ListEligible returns offerings the account may still enroll in. Visibility
// follows the audience policy for the role; already-enrolled offerings are
// excluded regardless of state.
func (r *OfferingRepository) ListEligible(ctx context.Context, accountID string, role models.Role, programID *string, adminSeesAll bool) ([]models.Offering, error) {
	base := fmt.Sprintf(`SELECT %s FROM offerings o
        WHERE NOT EXISTS (SELECT 1 FROM enrollments e WHERE e.offering_id = o.id AND e.account_id = $1)`,
		prefixColumns("o", offeringColumns))

	var query string
	var args []interface{}

	switch {
	case role.IsAdministrative():
		if adminSeesAll {
			query = base
			args = []interface{}{accountID}
		} else {
			query = base + ` AND o.audience = $2`
			args = []interface{}{accountID, models.AudiencePublic}
		}
	case role == models.RoleStudent && programID != nil:
		query = base + ` AND (o.audience = $2 OR o.audience = $3
            OR (o.audience = $4 AND EXISTS (
                SELECT 1 FROM offering_programs op WHERE op.offering_id = o.id AND op.program_id = $5)))`
		args = []interface{}{accountID, models.AudiencePublic, models.AudienceAllPrograms, models.AudienceProgramSpecific, *programID}
	default:
		query = base + ` AND o.audience = $2`
		args = []interface{}{accountID, models.AudiencePublic}
	}

	query += " ORDER BY o.created_at DESC"

	var offerings []models.Offering
	if err := r.db.SelectContext(ctx, &offerings, query, args...); err != nil {
		return nil, fmt.Errorf("list eligible offerings: %w", err)
	}
	return offerings, nil
}

func replacePrograms(ctx context.Context, tx *sqlx.Tx, offeringID string, programIDs []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM offering_programs WHERE offering_id = $1`, offeringID); err != nil {
		return fmt.Errorf("clear offering programs: %w", err)
	}
	for _, programID := range programIDs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO offering_programs (offering_id, program_id) VALUES ($1, $2)`, offeringID, programID); err != nil {
			return fmt.Errorf("insert offering program: %w", err)
		}
	}
	return nil
}

func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, part := range parts {
		parts[i] = alias + "." + strings.TrimSpace(part)
	}
	return strings.Join(parts, ", ")
}

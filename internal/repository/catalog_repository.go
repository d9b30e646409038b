package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/uext/extensions-api/internal/models"
)

// CatalogRepository persists the flat catalog entities: programs, categories
// and organizers.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository constructs the repository.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// ListPrograms returns all programs ordered by name.
func (r *CatalogRepository) ListPrograms(ctx context.Context) ([]models.Program, error) {
	var programs []models.Program
	if err := r.db.SelectContext(ctx, &programs, `SELECT id, name, code, created_at FROM programs ORDER BY name ASC`); err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}
	return programs, nil
}

// FindProgram returns a program by ID.
func (r *CatalogRepository) FindProgram(ctx context.Context, id string) (*models.Program, error) {
	var program models.Program
	if err := r.db.GetContext(ctx, &program, `SELECT id, name, code, created_at FROM programs WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &program, nil
}

// CreateProgram persists a new program.
func (r *CatalogRepository) CreateProgram(ctx context.Context, program *models.Program) error {
	if program.ID == "" {
		program.ID = uuid.NewString()
	}
	if program.CreatedAt.IsZero() {
		program.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO programs (id, name, code, created_at) VALUES (:id, :name, :code, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, program); err != nil {
		return fmt.Errorf("create program: %w", err)
	}
	return nil
}

// UpdateProgram rewrites a program's name and code.
func (r *CatalogRepository) UpdateProgram(ctx context.Context, program *models.Program) error {
	const query = `UPDATE programs SET name = $2, code = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, program.ID, program.Name, program.Code); err != nil {
		return fmt.Errorf("update program: %w", err)
	}
	return nil
}

// DeleteProgram removes a program.
func (r *CatalogRepository) DeleteProgram(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM programs WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete program: %w", err)
	}
	return nil
}

// ListCategories returns all categories ordered by name.
func (r *CatalogRepository) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := r.db.SelectContext(ctx, &categories, `SELECT id, name, created_at FROM categories ORDER BY name ASC`); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// CreateCategory persists a new category.
func (r *CatalogRepository) CreateCategory(ctx context.Context, category *models.Category) error {
	if category.ID == "" {
		category.ID = uuid.NewString()
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO categories (id, name, created_at) VALUES (:id, :name, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, category); err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

// UpdateCategory renames a category.
func (r *CatalogRepository) UpdateCategory(ctx context.Context, category *models.Category) error {
	const query = `UPDATE categories SET name = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, category.ID, category.Name); err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return nil
}

// DeleteCategory removes a category.
func (r *CatalogRepository) DeleteCategory(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}

// ListOrganizers returns all organizers ordered by name.
func (r *CatalogRepository) ListOrganizers(ctx context.Context) ([]models.Organizer, error) {
	var organizers []models.Organizer
	if err := r.db.SelectContext(ctx, &organizers, `SELECT id, name, email, created_at FROM organizers ORDER BY name ASC`); err != nil {
		return nil, fmt.Errorf("list organizers: %w", err)
	}
	return organizers, nil
}

// CreateOrganizer persists a new organizer.
func (r *CatalogRepository) CreateOrganizer(ctx context.Context, organizer *models.Organizer) error {
	if organizer.ID == "" {
		organizer.ID = uuid.NewString()
	}
	if organizer.CreatedAt.IsZero() {
		organizer.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO organizers (id, name, email, created_at) VALUES (:id, :name, :email, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, organizer); err != nil {
		return fmt.Errorf("create organizer: %w", err)
	}
	return nil
}

// UpdateOrganizer rewrites an organizer's name and contact email.
func (r *CatalogRepository) UpdateOrganizer(ctx context.Context, organizer *models.Organizer) error {
	const query = `UPDATE organizers SET name = $2, email = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, organizer.ID, organizer.Name, organizer.Email); err != nil {
		return fmt.Errorf("update organizer: %w", err)
	}
	return nil
}

// DeleteOrganizer removes an organizer.
func (r *CatalogRepository) DeleteOrganizer(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM organizers WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete organizer: %w", err)
	}
	return nil
}

package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/uext/extensions-api/internal/models"
	appErrors "github.com/uext/extensions-api/pkg/errors"
)

type catalogRepository interface {
	ListPrograms(ctx context.Context) ([]models.Program, error)
	FindProgram(ctx context.Context, id string) (*models.Program, error)
	CreateProgram(ctx context.Context, program *models.Program) error
	UpdateProgram(ctx context.Context, program *models.Program) error
	DeleteProgram(ctx context.Context, id string) error
	ListCategories(ctx context.Context) ([]models.Category, error)
	CreateCategory(ctx context.Context, category *models.Category) error
	UpdateCategory(ctx context.Context, category *models.Category) error
	DeleteCategory(ctx context.Context, id string) error
	ListOrganizers(ctx context.Context) ([]models.Organizer, error)
	CreateOrganizer(ctx context.Context, organizer *models.Organizer) error
	UpdateOrganizer(ctx context.Context, organizer *models.Organizer) error
	DeleteOrganizer(ctx context.Context, id string) error
}

// ProgramRequest is the create/update payload for programs.
type ProgramRequest struct {
	Name string `json:"name" validate:"required"`
	Code string `json:"code" validate:"required"`
}

// CategoryRequest is the create/update payload for categories.
type CategoryRequest struct {
	Name string `json:"name" validate:"required"`
}

// OrganizerRequest is the create/update payload for organizers.
type OrganizerRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"omitempty,email"`
}

// CatalogService manages the flat catalog entities.
type CatalogService struct {
	repo      catalogRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCatalogService constructs CatalogService.
func NewCatalogService(repo catalogRepository, validate *validator.Validate, logger *zap.Logger) *CatalogService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{repo: repo, validator: validate, logger: logger}
}

// ListPrograms returns every program.
func (s *CatalogService) ListPrograms(ctx context.Context) ([]models.Program, error) {
	programs, err := s.repo.ListPrograms(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list programs")
	}
	return programs, nil
}

// CreateProgram stores a new program.
func (s *CatalogService) CreateProgram(ctx context.Context, req ProgramRequest) (*models.Program, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid program payload")
	}
	program := &models.Program{Name: req.Name, Code: req.Code}
	if err := s.repo.CreateProgram(ctx, program); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create program")
	}
	return program, nil
}

// UpdateProgram rewrites an existing program.
func (s *CatalogService) UpdateProgram(ctx context.Context, id string, req ProgramRequest) (*models.Program, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid program payload")
	}
	program, err := s.repo.FindProgram(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
	}
	program.Name = req.Name
	program.Code = req.Code
	if err := s.repo.UpdateProgram(ctx, program); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update program")
	}
	return program, nil
}

// DeleteProgram removes a program.
func (s *CatalogService) DeleteProgram(ctx context.Context, id string) error {
	if err := s.repo.DeleteProgram(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete program")
	}
	return nil
}

// ListCategories returns every category.
func (s *CatalogService) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list categories")
	}
	return categories, nil
}

// CreateCategory stores a new category.
func (s *CatalogService) CreateCategory(ctx context.Context, req CategoryRequest) (*models.Category, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid category payload")
	}
	category := &models.Category{Name: req.Name}
	if err := s.repo.CreateCategory(ctx, category); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create category")
	}
	return category, nil
}

// UpdateCategory renames a category.
func (s *CatalogService) UpdateCategory(ctx context.Context, id string, req CategoryRequest) (*models.Category, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid category payload")
	}
	category := &models.Category{ID: id, Name: req.Name}
	if err := s.repo.UpdateCategory(ctx, category); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update category")
	}
	return category, nil
}

// DeleteCategory removes a category.
func (s *CatalogService) DeleteCategory(ctx context.Context, id string) error {
	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete category")
	}
	return nil
}

// ListOrganizers returns every organizer.
func (s *CatalogService) ListOrganizers(ctx context.Context) ([]models.Organizer, error) {
	organizers, err := s.repo.ListOrganizers(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list organizers")
	}
	return organizers, nil
}

// CreateOrganizer stores a new organizer.
func (s *CatalogService) CreateOrganizer(ctx context.Context, req OrganizerRequest) (*models.Organizer, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid organizer payload")
	}
	organizer := &models.Organizer{Name: req.Name, Email: req.Email}
	if err := s.repo.CreateOrganizer(ctx, organizer); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create organizer")
	}
	return organizer, nil
}

// UpdateOrganizer rewrites an organizer.
func (s *CatalogService) UpdateOrganizer(ctx context.Context, id string, req OrganizerRequest) (*models.Organizer, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid organizer payload")
	}
	organizer := &models.Organizer{ID: id, Name: req.Name, Email: req.Email}
	if err := s.repo.UpdateOrganizer(ctx, organizer); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update organizer")
	}
	return organizer, nil
}

// DeleteOrganizer removes an organizer.
func (s *CatalogService) DeleteOrganizer(ctx context.Context, id string) error {
	if err := s.repo.DeleteOrganizer(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete organizer")
	}
	return nil
}

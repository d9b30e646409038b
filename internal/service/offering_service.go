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

type offeringRepository interface {
	Create(ctx context.Context, offering *models.Offering) error
	Update(ctx context.Context, offering *models.Offering) error
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*models.Offering, error)
	List(ctx context.Context, filter models.OfferingFilter) ([]models.Offering, int, error)
}

// OfferingRequest describes offering creation and update payloads.
type OfferingRequest struct {
	Kind        models.OfferingKind   `json:"kind" validate:"required,oneof=COURSE EVENT"`
	Title       string                `json:"title" validate:"required"`
	Description string                `json:"description"`
	CategoryID  *string               `json:"category_id,omitempty"`
	OrganizerID *string               `json:"organizer_id,omitempty"`
	Capacity    int                   `json:"capacity" validate:"required,gt=0"`
	Audience    models.AudiencePolicy `json:"audience" validate:"required,oneof=PUBLIC ALL_PROGRAMS PROGRAM_SPECIFIC"`
	IsFree      bool                  `json:"is_free"`
	Price       *float64              `json:"price,omitempty"`
	ProgramIDs  []string              `json:"program_ids,omitempty"`
}

// OfferingService manages the course/event catalog.
type OfferingService struct {
	repo      offeringRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewOfferingService constructs OfferingService.
func NewOfferingService(repo offeringRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *OfferingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OfferingService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// Create validates the pricing and audience invariants and stores the offering.
func (s *OfferingService) Create(ctx context.Context, req OfferingRequest) (*models.Offering, error) {
	if err := s.checkRequest(req); err != nil {
		return nil, err
	}

	offering := &models.Offering{
		Kind:        req.Kind,
		Title:       req.Title,
		Description: req.Description,
		CategoryID:  req.CategoryID,
		OrganizerID: req.OrganizerID,
		Capacity:    req.Capacity,
		Audience:    req.Audience,
		IsFree:      req.IsFree,
		Price:       req.Price,
		ProgramIDs:  req.ProgramIDs,
	}
	if err := s.repo.Create(ctx, offering); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create offering")
	}

	s.invalidateAll(ctx)
	return offering, nil
}

// Update rewrites an existing offering.
func (s *OfferingService) Update(ctx context.Context, id string, req OfferingRequest) (*models.Offering, error) {
	if err := s.checkRequest(req); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offering")
	}

	existing.Kind = req.Kind
	existing.Title = req.Title
	existing.Description = req.Description
	existing.CategoryID = req.CategoryID
	existing.OrganizerID = req.OrganizerID
	existing.Capacity = req.Capacity
	existing.Audience = req.Audience
	existing.IsFree = req.IsFree
	existing.Price = req.Price
	existing.ProgramIDs = req.ProgramIDs

	if err := s.repo.Update(ctx, existing); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update offering")
	}

	s.invalidateAll(ctx)
	return existing, nil
}

// Delete removes an offering with zero enrollments.
func (s *OfferingService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return appErr
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete offering")
	}
	s.invalidateAll(ctx)
	return nil
}

// Get returns an offering by ID.
func (s *OfferingService) Get(ctx context.Context, id string) (*models.Offering, error) {
	offering, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offering")
	}
	return offering, nil
}

// List returns offerings with pagination metadata.
func (s *OfferingService) List(ctx context.Context, filter models.OfferingFilter) ([]models.Offering, *models.Pagination, error) {
	offerings, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list offerings")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return offerings, pagination, nil
}

func (s *OfferingService) checkRequest(req OfferingRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid offering payload")
	}
	if req.IsFree && req.Price != nil {
		return appErrors.Clone(appErrors.ErrValidation, "a free offering must not carry a price")
	}
	if !req.IsFree && (req.Price == nil || *req.Price <= 0) {
		return appErrors.Clone(appErrors.ErrValidation, "a paid offering requires a positive price")
	}
	if req.Audience == models.AudienceProgramSpecific && len(req.ProgramIDs) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "a program-specific offering must name at least one program")
	}
	if req.Audience != models.AudienceProgramSpecific && len(req.ProgramIDs) > 0 {
		return appErrors.Clone(appErrors.ErrValidation, "program associations require PROGRAM_SPECIFIC audience")
	}
	return nil
}

func (s *OfferingService) invalidateAll(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, "eligibility:*"); err != nil {
		s.logger.Warn("eligibility cache invalidation failed", zap.Error(err))
	}
}

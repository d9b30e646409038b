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

type changeRequestRepository interface {
	Create(ctx context.Context, req *models.ChangeRequest) error
	FindByID(ctx context.Context, id string) (*models.ChangeRequest, error)
	List(ctx context.Context, filter models.ChangeRequestFilter) ([]models.ChangeRequest, int, error)
	UpdateStatus(ctx context.Context, id string, status models.ChangeRequestStatus) error
}

// CreateChangeRequestPayload is the user-facing ticket body.
type CreateChangeRequestPayload struct {
	Kind    models.ChangeRequestKind `json:"kind" validate:"required,oneof=FEATURE BUG"`
	Subject string                   `json:"subject" validate:"required,max=200"`
	Detail  string                   `json:"detail" validate:"required"`
}

// UpdateChangeRequestStatusPayload moves a ticket through review.
type UpdateChangeRequestStatusPayload struct {
	Status models.ChangeRequestStatus `json:"status" validate:"required,oneof=OPEN IN_REVIEW CLOSED"`
}

// ChangeRequestService manages feedback tickets from users to administrators.
type ChangeRequestService struct {
	repo      changeRequestRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewChangeRequestService constructs ChangeRequestService.
func NewChangeRequestService(repo changeRequestRepository, validate *validator.Validate, logger *zap.Logger) *ChangeRequestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChangeRequestService{repo: repo, validator: validate, logger: logger}
}

// Create files a new ticket in OPEN state.
func (s *ChangeRequestService) Create(ctx context.Context, accountID string, payload CreateChangeRequestPayload) (*models.ChangeRequest, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid change request payload")
	}
	req := &models.ChangeRequest{
		AccountID: accountID,
		Kind:      payload.Kind,
		Subject:   payload.Subject,
		Detail:    payload.Detail,
		Status:    models.ChangeRequestOpen,
	}
	if err := s.repo.Create(ctx, req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create change request")
	}
	return req, nil
}

// List returns tickets with pagination metadata.
func (s *ChangeRequestService) List(ctx context.Context, filter models.ChangeRequestFilter) ([]models.ChangeRequest, *models.Pagination, error) {
	requests, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list change requests")
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
	return requests, pagination, nil
}

// UpdateStatus moves a ticket forward through OPEN, IN_REVIEW, CLOSED. Moving
// backwards or out of CLOSED is rejected.
func (s *ChangeRequestService) UpdateStatus(ctx context.Context, id string, payload UpdateChangeRequestStatusPayload) (*models.ChangeRequest, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}

	req, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "change request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load change request")
	}

	if !validTransition(req.Status, payload.Status) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "invalid status transition")
	}

	if err := s.repo.UpdateStatus(ctx, id, payload.Status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update change request")
	}
	req.Status = payload.Status
	return req, nil
}

func validTransition(from, to models.ChangeRequestStatus) bool {
	switch from {
	case models.ChangeRequestOpen:
		return to == models.ChangeRequestInReview || to == models.ChangeRequestClosed
	case models.ChangeRequestInReview:
		return to == models.ChangeRequestClosed
	}
	return false
}

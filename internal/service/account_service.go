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

type accountRepository interface {
	FindByID(ctx context.Context, id string) (*models.Account, error)
	List(ctx context.Context, filter models.AccountFilter) ([]models.AccountDetail, int, error)
	UpdateRoleAndProgram(ctx context.Context, id string, role models.Role, programID *string) error
}

// UpdateAccountRequest is the administrative role/program edit payload.
type UpdateAccountRequest struct {
	Role      models.Role `json:"role" validate:"required,oneof=PLAIN_USER STUDENT ADMIN MASTER"`
	ProgramID *string     `json:"program_id,omitempty"`
}

// AccountService provides administrative account management.
type AccountService struct {
	repo      accountRepository
	programs  programReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAccountService constructs AccountService.
func NewAccountService(repo accountRepository, programs programReader, validate *validator.Validate, logger *zap.Logger) *AccountService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{repo: repo, programs: programs, validator: validate, logger: logger}
}

// List returns accounts with pagination metadata.
func (s *AccountService) List(ctx context.Context, filter models.AccountFilter) ([]models.AccountDetail, *models.Pagination, error) {
	accounts, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list accounts")
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
	return accounts, pagination, nil
}

// Update applies an administrative role/program edit. A STUDENT keeps a
// program; every other role drops it.
func (s *AccountService) Update(ctx context.Context, id string, req UpdateAccountRequest) (*models.Account, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid account payload")
	}

	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}

	programID := req.ProgramID
	if req.Role == models.RoleStudent {
		if programID == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "student accounts must belong to a program")
		}
		if _, err := s.programs.FindProgram(ctx, *programID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
		}
	} else {
		programID = nil
	}

	if err := s.repo.UpdateRoleAndProgram(ctx, id, req.Role, programID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update account")
	}

	account, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}
	return account, nil
}

package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/uext/extensions-api/internal/models"
	"github.com/uext/extensions-api/pkg/config"
	appErrors "github.com/uext/extensions-api/pkg/errors"
)

type eligibleOfferingLister interface {
	ListEligible(ctx context.Context, accountID string, role models.Role, programID *string, adminSeesAll bool) ([]models.Offering, error)
}

// EligibilityService computes the offerings an account may still enroll in.
// It is read-only; results are cached per account with a short TTL.
type EligibilityService struct {
	offerings eligibleOfferingLister
	accounts  accountReader
	cache     *CacheService
	config    config.EligibilityConfig
	logger    *zap.Logger
}

// NewEligibilityService constructs EligibilityService.
func NewEligibilityService(offerings eligibleOfferingLister, accounts accountReader, cache *CacheService, cfg config.EligibilityConfig, logger *zap.Logger) *EligibilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EligibilityService{offerings: offerings, accounts: accounts, cache: cache, config: cfg, logger: logger}
}

// ListAvailable resolves visibility for the account: PLAIN_USER sees PUBLIC
// offerings, a STUDENT additionally sees ALL_PROGRAMS and the
// PROGRAM_SPECIFIC ones naming its program, and administrative roles see
// everything when AdminSeesAll is set. Offerings the account already enrolled
// in are always excluded.
func (s *EligibilityService) ListAvailable(ctx context.Context, accountID string) ([]models.Offering, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}

	key := eligibilityCacheKey(accountID)
	var cached []models.Offering
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	offerings, err := s.offerings.ListEligible(ctx, account.ID, account.Role, account.ProgramID, s.config.AdminSeesAll)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve eligible offerings")
	}

	if err := s.cache.Set(ctx, key, offerings, s.config.CacheTTL); err != nil {
		s.logger.Warn("eligibility cache set failed", zap.String("account_id", accountID), zap.Error(err))
	}
	return offerings, nil
}

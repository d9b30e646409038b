package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/uext/extensions-api/internal/models"
	appErrors "github.com/uext/extensions-api/pkg/errors"
	"github.com/uext/extensions-api/pkg/jobs"
)

type enrollmentRepository interface {
	CreateAtomic(ctx context.Context, enrollment *models.Enrollment, proof *models.PaymentProof) error
	Exists(ctx context.Context, accountID, offeringID string) (bool, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	Resolve(ctx context.Context, id string, state models.EnrollmentState, adminID string, at time.Time) error
	GetProof(ctx context.Context, enrollmentID string) (*models.PaymentProof, error)
	CountActive(ctx context.Context, offeringID string) (int, error)
}

type accountReader interface {
	FindByID(ctx context.Context, id string) (*models.Account, error)
}

type offeringReader interface {
	FindByID(ctx context.Context, id string) (*models.Offering, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// ProofUpload carries the uploaded payment artifact into the service layer.
// Size and MIME enforcement happens at the intake boundary; the service only
// checks presence.
type ProofUpload struct {
	Filename    string
	Size        int64
	ContentType string
	Data        []byte
}

// CreateEnrollmentRequest describes an enrollment attempt.
type CreateEnrollmentRequest struct {
	AccountID     string `validate:"required"`
	OfferingID    string `validate:"required"`
	PaymentMethod *models.PaymentMethod
	Proof         *ProofUpload
}

// ResolveEnrollmentRequest carries an administrative decision.
type ResolveEnrollmentRequest struct {
	Decision models.EnrollmentState `json:"decision" validate:"required"`
}

// EnrollmentService drives the enrollment payment-state machine.
type EnrollmentService struct {
	repo      enrollmentRepository
	accounts  accountReader
	offerings offeringReader
	cache     *CacheService
	metrics   *MetricsService
	mirror    jobEnqueuer
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, accounts accountReader, offerings offeringReader, cache *CacheService, metrics *MetricsService, mirror jobEnqueuer, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, accounts: accounts, offerings: offerings, cache: cache, metrics: metrics, mirror: mirror, validator: validate, logger: logger}
}

// Create runs the full eligibility gauntlet and persists the enrollment. The
// duplicate and capacity checks are re-run inside the storage transaction, so
// the pre-checks here only order the user-facing errors.
func (s *EnrollmentService) Create(ctx context.Context, req CreateEnrollmentRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	account, err := s.accounts.FindByID(ctx, req.AccountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.reject(appErrors.Clone(appErrors.ErrNotFound, "account not found"))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}

	offering, err := s.offerings.FindByID(ctx, req.OfferingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.reject(appErrors.Clone(appErrors.ErrNotFound, "offering not found"))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offering")
	}

	exists, err := s.repo.Exists(ctx, req.AccountID, req.OfferingID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate enrollment")
	}
	if exists {
		return nil, s.reject(appErrors.ErrDuplicateEnrollment)
	}

	if !account.DocumentsVerified {
		return nil, s.reject(appErrors.ErrDocumentsNotVerified)
	}

	// Capacity is checked before the payment branch so a full offering
	// always answers CAPACITY_EXCEEDED, regardless of payment mistakes.
	// The transaction re-checks under the row lock.
	active, err := s.repo.CountActive(ctx, req.OfferingID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate enrollment")
	}
	if active >= offering.Capacity {
		return nil, s.reject(appErrors.ErrCapacityExceeded)
	}

	now := time.Now().UTC()
	enrollment := &models.Enrollment{
		AccountID:  req.AccountID,
		OfferingID: req.OfferingID,
		CreatedAt:  now,
	}

	var proof *models.PaymentProof
	if offering.IsFree {
		if req.PaymentMethod != nil || req.Proof != nil {
			return nil, s.reject(appErrors.ErrInvalidPaymentData)
		}
		enrollment.State = models.EnrollmentApproved
		enrollment.ApprovedAt = &now
	} else {
		if req.PaymentMethod == nil || !models.ValidPaymentMethod(*req.PaymentMethod) {
			return nil, s.reject(appErrors.ErrInvalidPaymentMethod)
		}
		if req.Proof == nil || len(req.Proof.Data) == 0 {
			return nil, s.reject(appErrors.ErrMissingProof)
		}
		enrollment.State = models.EnrollmentPending
		enrollment.PaymentMethod = req.PaymentMethod
		enrollment.Amount = offering.Price
		enrollment.ProofFilename = &req.Proof.Filename
		size := req.Proof.Size
		if size == 0 {
			size = int64(len(req.Proof.Data))
		}
		enrollment.ProofSize = &size
		enrollment.ProofUploaded = &now
		proof = &models.PaymentProof{
			Filename:    req.Proof.Filename,
			Size:        size,
			ContentType: req.Proof.ContentType,
			Data:        req.Proof.Data,
			UploadedAt:  now,
		}
	}

	if err := s.repo.CreateAtomic(ctx, enrollment, proof); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, s.reject(appErr)
		}
		s.metrics.RecordEnrollmentOutcome("storage_error")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	s.metrics.RecordEnrollmentOutcome("created")
	s.invalidateEligibility(ctx, req.AccountID)
	s.mirrorProof(enrollment.ID, proof)

	detail, err := s.repo.FindDetailByID(ctx, enrollment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	return detail, nil
}

// Resolve applies an administrative APPROVED/REJECTED decision to a PENDING
// enrollment. Terminal enrollments cannot be re-resolved.
func (s *EnrollmentService) Resolve(ctx context.Context, admin *models.JWTClaims, id string, req ResolveEnrollmentRequest) (*models.EnrollmentDetail, error) {
	if admin == nil || !admin.Role.IsAdministrative() {
		return nil, appErrors.ErrForbidden
	}
	if req.Decision != models.EnrollmentApproved && req.Decision != models.EnrollmentRejected {
		return nil, appErrors.Clone(appErrors.ErrValidation, "decision must be APPROVED or REJECTED")
	}

	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.State != models.EnrollmentPending {
		return nil, appErrors.ErrAlreadyResolved
	}

	if err := s.repo.Resolve(ctx, id, req.Decision, admin.AccountID, time.Now().UTC()); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve enrollment")
	}

	s.invalidateEligibility(ctx, enrollment.AccountID)

	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	return detail, nil
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
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
	return enrollments, pagination, nil
}

// GetProof loads the payment proof for download. An empty artifact is treated
// as missing, never served as a corrupt download.
func (s *EnrollmentService) GetProof(ctx context.Context, enrollmentID string) (*models.PaymentProof, error) {
	if _, err := s.repo.FindByID(ctx, enrollmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	proof, err := s.repo.GetProof(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment proof not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment proof")
	}
	if len(proof.Data) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "payment proof not found")
	}
	return proof, nil
}

func (s *EnrollmentService) reject(err *appErrors.Error) error {
	s.metrics.RecordEnrollmentOutcome(err.Code)
	return err
}

func (s *EnrollmentService) invalidateEligibility(ctx context.Context, accountID string) {
	if err := s.cache.Invalidate(ctx, eligibilityCacheKey(accountID)); err != nil {
		s.logger.Warn("eligibility cache invalidation failed", zap.String("account_id", accountID), zap.Error(err))
	}
}

func (s *EnrollmentService) mirrorProof(enrollmentID string, proof *models.PaymentProof) {
	if s.mirror == nil || proof == nil {
		return
	}
	job := jobs.Job{
		ID:      enrollmentID,
		Type:    "mirror_proof",
		Payload: ProofMirrorPayload{EnrollmentID: enrollmentID, Filename: proof.Filename, Data: proof.Data},
	}
	if err := s.mirror.Enqueue(job); err != nil {
		s.logger.Warn("proof mirror enqueue failed", zap.String("enrollment_id", enrollmentID), zap.Error(err))
	}
}

// ProofMirrorPayload is handed to the upload mirror queue.
type ProofMirrorPayload struct {
	EnrollmentID string
	Filename     string
	Data         []byte
}

func eligibilityCacheKey(accountID string) string {
	return fmt.Sprintf("eligibility:%s", accountID)
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/uext/extensions-api/internal/models"
	appErrors "github.com/uext/extensions-api/pkg/errors"
	"github.com/uext/extensions-api/pkg/jobs"
)

type documentRepository interface {
	Create(ctx context.Context, doc *models.IdentityDocument) error
	FindByID(ctx context.Context, id string) (*models.IdentityDocument, error)
	ListByAccount(ctx context.Context, accountID string) ([]models.IdentityDocument, error)
}

type accountVerifier interface {
	FindByID(ctx context.Context, id string) (*models.Account, error)
	SetDocumentsVerified(ctx context.Context, id string, verified bool, adminID string, at time.Time) error
}

// DocumentUpload carries an uploaded identity credential.
type DocumentUpload struct {
	Filename    string
	Size        int64
	ContentType string
	Data        []byte
}

// VerifyDocumentsRequest is the administrative verification decision.
type VerifyDocumentsRequest struct {
	Verified bool `json:"verified"`
}

// DocumentService handles identity document intake and verification.
type DocumentService struct {
	repo     documentRepository
	accounts accountVerifier
	mirror   jobEnqueuer
	logger   *zap.Logger
}

// NewDocumentService constructs DocumentService.
func NewDocumentService(repo documentRepository, accounts accountVerifier, mirror jobEnqueuer, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{repo: repo, accounts: accounts, mirror: mirror, logger: logger}
}

// Upload stores a credential for the owning account.
func (s *DocumentService) Upload(ctx context.Context, accountID string, upload DocumentUpload) (*models.IdentityDocument, error) {
	if len(upload.Data) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "document is empty")
	}
	if _, err := s.accounts.FindByID(ctx, accountID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}

	size := upload.Size
	if size == 0 {
		size = int64(len(upload.Data))
	}
	doc := &models.IdentityDocument{
		AccountID:   accountID,
		Filename:    upload.Filename,
		Size:        size,
		ContentType: upload.ContentType,
		Data:        upload.Data,
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store document")
	}

	if s.mirror != nil {
		job := jobs.Job{
			ID:      doc.ID,
			Type:    "mirror_document",
			Payload: ProofMirrorPayload{EnrollmentID: doc.ID, Filename: doc.Filename, Data: doc.Data},
		}
		if err := s.mirror.Enqueue(job); err != nil {
			s.logger.Warn("document mirror enqueue failed", zap.String("document_id", doc.ID), zap.Error(err))
		}
	}
	return doc, nil
}

// ListForAccount returns document metadata for an account.
func (s *DocumentService) ListForAccount(ctx context.Context, accountID string) ([]models.IdentityDocument, error) {
	docs, err := s.repo.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	return docs, nil
}

// Download loads a document including its bytes. Empty artifacts report as
// missing.
func (s *DocumentService) Download(ctx context.Context, id string) (*models.IdentityDocument, error) {
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	if len(doc.Data) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}
	return doc, nil
}

// Verify records the administrative verification decision on the account.
func (s *DocumentService) Verify(ctx context.Context, admin *models.JWTClaims, accountID string, req VerifyDocumentsRequest) (*models.Account, error) {
	if admin == nil || !admin.Role.IsAdministrative() {
		return nil, appErrors.ErrForbidden
	}
	if _, err := s.accounts.FindByID(ctx, accountID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}
	if err := s.accounts.SetDocumentsVerified(ctx, accountID, req.Verified, admin.AccountID, time.Now().UTC()); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update verification")
	}
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}
	return account, nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/uext/extensions-api/internal/models"
)

// DocumentRepository persists identity documents awaiting verification.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create stores an uploaded identity document.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.IdentityDocument) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	const query = `INSERT INTO identity_documents (id, account_id, filename, size, content_type, data, uploaded_at)
        VALUES (:id, :account_id, :filename, :size, :content_type, :data, :uploaded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create identity document: %w", err)
	}
	return nil
}

// FindByID loads a document including its bytes.
func (r *DocumentRepository) FindByID(ctx context.Context, id string) (*models.IdentityDocument, error) {
	const query = `SELECT id, account_id, filename, size, content_type, data, uploaded_at
        FROM identity_documents WHERE id = $1`
	var doc models.IdentityDocument
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListByAccount returns documents for an account, newest first, without bytes.
func (r *DocumentRepository) ListByAccount(ctx context.Context, accountID string) ([]models.IdentityDocument, error) {
	const query = `SELECT id, account_id, filename, size, content_type, ''::bytea AS data, uploaded_at
        FROM identity_documents WHERE account_id = $1 ORDER BY uploaded_at DESC`
	var docs []models.IdentityDocument
	if err := r.db.SelectContext(ctx, &docs, query, accountID); err != nil {
		return nil, fmt.Errorf("list identity documents: %w", err)
	}
	return docs, nil
}

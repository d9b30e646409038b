package models

import "time"

// IdentityDocument is an uploaded credential pending administrative review.
// Verification itself is recorded on the owning account.
type IdentityDocument struct {
	ID          string    `db:"id" json:"id"`
	AccountID   string    `db:"account_id" json:"account_id"`
	Filename    string    `db:"filename" json:"filename"`
	Size        int64     `db:"size" json:"size"`
	ContentType string    `db:"content_type" json:"content_type"`
	Data        []byte    `db:"data" json:"-"`
	UploadedAt  time.Time `db:"uploaded_at" json:"uploaded_at"`
}

package models

import "time"

// ChangeRequestKind classifies user feedback tickets.
type ChangeRequestKind string

const (
	ChangeRequestFeature ChangeRequestKind = "FEATURE"
	ChangeRequestBug     ChangeRequestKind = "BUG"
)

// ChangeRequestStatus tracks the review lifecycle of a ticket.
type ChangeRequestStatus string

const (
	ChangeRequestOpen     ChangeRequestStatus = "OPEN"
	ChangeRequestInReview ChangeRequestStatus = "IN_REVIEW"
	ChangeRequestClosed   ChangeRequestStatus = "CLOSED"
)

// ChangeRequest is a feature/bug ticket filed by a user for administrators.
type ChangeRequest struct {
	ID        string              `db:"id" json:"id"`
	AccountID string              `db:"account_id" json:"account_id"`
	Kind      ChangeRequestKind   `db:"kind" json:"kind"`
	Subject   string              `db:"subject" json:"subject"`
	Detail    string              `db:"detail" json:"detail"`
	Status    ChangeRequestStatus `db:"status" json:"status"`
	CreatedAt time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt time.Time           `db:"updated_at" json:"updated_at"`
}

// ChangeRequestFilter provides listing criteria for tickets.
type ChangeRequestFilter struct {
	AccountID string
	Kind      ChangeRequestKind
	Status    ChangeRequestStatus
	Page      int
	PageSize  int
}

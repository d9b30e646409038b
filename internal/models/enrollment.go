package models

import "time"

// EnrollmentState represents the payment lifecycle of an enrollment.
type EnrollmentState string

// PENDING is the initial state for paid offerings; APPROVED and REJECTED are
// terminal. Free offerings are approved at creation time.
const (
	EnrollmentPending  EnrollmentState = "PENDING"
	EnrollmentApproved EnrollmentState = "APPROVED"
	EnrollmentRejected EnrollmentState = "REJECTED"
)

// PaymentMethod enumerates accepted payment channels for paid offerings.
type PaymentMethod string

const (
	PaymentCreditCard PaymentMethod = "CREDIT_CARD"
	PaymentTransfer   PaymentMethod = "TRANSFER"
	PaymentDeposit    PaymentMethod = "DEPOSIT"
)

// ValidPaymentMethod reports whether the method is one of the accepted values.
func ValidPaymentMethod(m PaymentMethod) bool {
	switch m {
	case PaymentCreditCard, PaymentTransfer, PaymentDeposit:
		return true
	}
	return false
}

// Enrollment links an account to an offering. Rows are never deleted; they
// double as the audit trail.
type Enrollment struct {
	ID            string          `db:"id" json:"id"`
	AccountID     string          `db:"account_id" json:"account_id"`
	OfferingID    string          `db:"offering_id" json:"offering_id"`
	State         EnrollmentState `db:"state" json:"state"`
	PaymentMethod *PaymentMethod  `db:"payment_method" json:"payment_method,omitempty"`
	Amount        *float64        `db:"amount" json:"amount,omitempty"`
	ProofFilename *string         `db:"proof_filename" json:"proof_filename,omitempty"`
	ProofSize     *int64          `db:"proof_size" json:"proof_size,omitempty"`
	ProofUploaded *time.Time      `db:"proof_uploaded_at" json:"proof_uploaded_at,omitempty"`
	ApprovedBy    *string         `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt    *time.Time      `db:"approved_at" json:"approved_at,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// EnrollmentDetail enriches Enrollment with account and offering info.
type EnrollmentDetail struct {
	Enrollment
	AccountEmail  string       `db:"account_email" json:"account_email"`
	AccountName   string       `db:"account_name" json:"account_name"`
	OfferingTitle string       `db:"offering_title" json:"offering_title"`
	OfferingKind  OfferingKind `db:"offering_kind" json:"offering_kind"`
}

// PaymentProof is the uploaded artifact bound to a paid enrollment.
type PaymentProof struct {
	EnrollmentID string    `db:"enrollment_id" json:"enrollment_id"`
	Filename     string    `db:"filename" json:"filename"`
	Size         int64     `db:"size" json:"size"`
	ContentType  string    `db:"content_type" json:"content_type"`
	Data         []byte    `db:"data" json:"-"`
	UploadedAt   time.Time `db:"uploaded_at" json:"uploaded_at"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	AccountID  string
	OfferingID string
	State      EnrollmentState
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

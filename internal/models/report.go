package models

import "time"

// FinancialReportRow aggregates enrollments and revenue per offering.
// Revenue counts only APPROVED enrollments of paid offerings.
type FinancialReportRow struct {
	OfferingID    string       `db:"offering_id" json:"offering_id"`
	OfferingTitle string       `db:"offering_title" json:"offering_title"`
	OfferingKind  OfferingKind `db:"offering_kind" json:"offering_kind"`
	Capacity      int          `db:"capacity" json:"capacity"`
	Pending       int          `db:"pending" json:"pending"`
	Approved      int          `db:"approved" json:"approved"`
	Rejected      int          `db:"rejected" json:"rejected"`
	Revenue       float64      `db:"revenue" json:"revenue"`
}

// UserReportRow aggregates registered accounts per role and program.
type UserReportRow struct {
	Role        Role    `db:"role" json:"role"`
	ProgramName *string `db:"program_name" json:"program_name,omitempty"`
	Count       int     `db:"count" json:"count"`
}

// FinancialReport wraps rows with totals and a generation timestamp.
type FinancialReport struct {
	Rows         []FinancialReportRow `json:"rows"`
	TotalRevenue float64              `json:"total_revenue"`
	GeneratedAt  time.Time            `json:"generated_at"`
}

// UserReport wraps per-role rows with a grand total.
type UserReport struct {
	Rows        []UserReportRow `json:"rows"`
	Total       int             `json:"total"`
	GeneratedAt time.Time       `json:"generated_at"`
}

package models

import "time"

// Role represents the available roles for the RBAC system.
type Role string

const (
	RolePlainUser Role = "PLAIN_USER"
	RoleStudent   Role = "STUDENT"
	RoleAdmin     Role = "ADMIN"
	RoleMaster    Role = "MASTER"
)

// IsAdministrative reports whether the role may manage catalog and enrollments.
func (r Role) IsAdministrative() bool {
	return r == RoleAdmin || r == RoleMaster
}

// Account represents an application account stored in the accounts table.
type Account struct {
	ID                string     `db:"id" json:"id"`
	Email             string     `db:"email" json:"email"`
	PasswordHash      string     `db:"password_hash" json:"-"`
	FullName          string     `db:"full_name" json:"full_name"`
	Role              Role       `db:"role" json:"role"`
	ProgramID         *string    `db:"program_id" json:"program_id,omitempty"`
	DocumentsVerified bool       `db:"documents_verified" json:"documents_verified"`
	VerifiedBy        *string    `db:"verified_by" json:"verified_by,omitempty"`
	VerifiedAt        *time.Time `db:"verified_at" json:"verified_at,omitempty"`
	Active            bool       `db:"active" json:"active"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// AccountDetail enriches Account with its program name.
type AccountDetail struct {
	Account
	ProgramName *string `db:"program_name" json:"program_name,omitempty"`
}

// AccountFilter captures filtering criteria for listing accounts.
type AccountFilter struct {
	Role      *Role
	ProgramID string
	Verified  *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

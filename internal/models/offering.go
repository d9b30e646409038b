package models

import "time"

// OfferingKind distinguishes courses from events.
type OfferingKind string

const (
	OfferingCourse OfferingKind = "COURSE"
	OfferingEvent  OfferingKind = "EVENT"
)

// AudiencePolicy determines which accounts may see an offering.
type AudiencePolicy string

const (
	AudiencePublic          AudiencePolicy = "PUBLIC"
	AudienceAllPrograms     AudiencePolicy = "ALL_PROGRAMS"
	AudienceProgramSpecific AudiencePolicy = "PROGRAM_SPECIFIC"
)

// Offering is a course or event accounts can enroll in.
type Offering struct {
	ID          string         `db:"id" json:"id"`
	Kind        OfferingKind   `db:"kind" json:"kind"`
	Title       string         `db:"title" json:"title"`
	Description string         `db:"description" json:"description"`
	CategoryID  *string        `db:"category_id" json:"category_id,omitempty"`
	OrganizerID *string        `db:"organizer_id" json:"organizer_id,omitempty"`
	Capacity    int            `db:"capacity" json:"capacity"`
	Audience    AudiencePolicy `db:"audience" json:"audience"`
	IsFree      bool           `db:"is_free" json:"is_free"`
	Price       *float64       `db:"price" json:"price,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`

	// ProgramIDs is populated only when Audience is PROGRAM_SPECIFIC.
	ProgramIDs []string `db:"-" json:"program_ids,omitempty"`
}

// OfferingFilter captures listing criteria for offerings.
type OfferingFilter struct {
	Kind       OfferingKind
	CategoryID string
	Audience   AudiencePolicy
	Search     string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

package domain

import "time"

// Accepted review rating bounds, inclusive.
const (
	MinReviewRating = 1
	MaxReviewRating = 5
)

// Review is feedback left on a profile, optionally tied to one of its projects.
type Review struct {
	ID               int64
	ProfileID        int64
	ProjectID        *int64
	Rating           int
	Text             string
	ReviewerName     string
	ReviewerPosition string
	ReviewerCompany  string
	IsVerified       bool
	VerifiedAt       *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ValidRating reports whether r lies within [MinReviewRating, MaxReviewRating].
func ValidRating(r int) bool {
	return r >= MinReviewRating && r <= MaxReviewRating
}

package domain

import "time"

// Project statuses.
const (
	ProjectOngoing   = "ongoing"
	ProjectCompleted = "completed"
	ProjectCancelled = "cancelled"
)

// Project is a piece of work listed on a profile.
type Project struct {
	ID           int64
	ProfileID    int64
	Title        string
	Description  string
	StartDate    time.Time
	EndDate      *time.Time
	Status       string
	Client       string
	URL          string
	Image        string
	Technologies []Technology
	Reviews      []Review
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

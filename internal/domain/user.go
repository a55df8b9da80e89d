package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is an account that can authenticate and own profiles.
type User struct {
	ID           int64
	UUID         uuid.UUID
	Email        string
	PasswordHash string
	FirstName    *string
	LastName     *string
	IsActive     bool
	IsStaff      bool
	IsAdmin      bool
	LastSeenAt   *time.Time
	CreatedAt    time.Time
}

// FullName joins first and last name, falling back to the email.
func (u User) FullName() string {
	var first, last string
	if u.FirstName != nil {
		first = *u.FirstName
	}
	if u.LastName != nil {
		last = *u.LastName
	}
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	case last != "":
		return last
	default:
		return u.Email
	}
}

package domain

import (
	"regexp"
	"strconv"
	"time"
)

// Profile is a specialist's public card.
type Profile struct {
	ID           int64
	UserID       int64
	Photo        string
	FirstName    string
	LastName     string
	Position     string
	Employment   EmploymentType
	Level        SpecialistLevel
	Experience   string
	Rating       float64
	ReviewCount  int
	ProjectCount int
	Technologies []Technology
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ProfileDetail is a profile together with every related record.
type ProfileDetail struct {
	Profile
	SocialNetworks []SocialNetwork
	Contacts       []ContactInfo
	Projects       []Project
	Reviews        []Review
}

var leadingYears = regexp.MustCompile(`^\s*(\d+)`)

// ExperienceYears extracts the leading integer of a free-form experience
// string such as "5+ years". Strings without one count as zero.
func ExperienceYears(experience string) int {
	m := leadingYears.FindStringSubmatch(experience)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

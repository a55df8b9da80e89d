package domain

import "time"

// EmploymentType is a kind of engagement (full-time, contract, ...).
type EmploymentType struct {
	ID   int64
	Name string
	Code string
}

// SpecialistLevel is a seniority grade (junior, middle, senior, ...).
type SpecialistLevel struct {
	ID   int64
	Name string
	Code string
}

// Technology is a language, framework or tool a specialist or project uses.
type Technology struct {
	ID          int64
	Name        string
	Code        string
	Description string
	Website     string
	Icon        string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

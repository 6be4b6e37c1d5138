package models

import "time"

// Semester is an academic term. At most one semester is active system-wide;
// activation atomically deactivates the previous one.
type Semester struct {
	ID               string     `db:"id" json:"id"`
	Code             string     `db:"code" json:"code"`
	Name             string     `db:"name" json:"name"`
	Active           bool       `db:"active" json:"active"`
	RegistrationOpen bool       `db:"registration_open" json:"registration_open"`
	EnrollmentStart  time.Time  `db:"enrollment_start" json:"enrollment_start"`
	EnrollmentEnd    time.Time  `db:"enrollment_end" json:"enrollment_end"`
	DropDeadline     *time.Time `db:"drop_deadline" json:"drop_deadline,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// EnrollmentWindowContains reports whether the instant falls inside the
// registration window.
func (s *Semester) EnrollmentWindowContains(t time.Time) bool {
	return !t.Before(s.EnrollmentStart) && !t.After(s.EnrollmentEnd)
}

package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusPendingPayment EnrollmentStatus = "PENDING_PAYMENT"
	EnrollmentStatusActive         EnrollmentStatus = "ACTIVE"
	EnrollmentStatusWaitlisted     EnrollmentStatus = "WAITLISTED"
	EnrollmentStatusDropped        EnrollmentStatus = "DROPPED"
	EnrollmentStatusCompleted      EnrollmentStatus = "COMPLETED"
)

// BlockingStatuses are the states that prevent a second enrollment for the
// same (student, course) pair.
var BlockingStatuses = []EnrollmentStatus{
	EnrollmentStatusActive,
	EnrollmentStatusPendingPayment,
	EnrollmentStatusWaitlisted,
}

// transitions is the enrollment state machine. DROPPED and COMPLETED are
// terminal.
var transitions = map[EnrollmentStatus][]EnrollmentStatus{
	EnrollmentStatusPendingPayment: {EnrollmentStatusActive, EnrollmentStatusDropped},
	EnrollmentStatusWaitlisted:     {EnrollmentStatusActive, EnrollmentStatusDropped},
	EnrollmentStatusActive:         {EnrollmentStatusDropped, EnrollmentStatusCompleted},
	EnrollmentStatusDropped:        nil,
	EnrollmentStatusCompleted:      nil,
}

// CanTransition reports whether from -> to is a legal status change.
func CanTransition(from, to EnrollmentStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the status has no outgoing transitions.
func (s EnrollmentStatus) Terminal() bool {
	return s == EnrollmentStatusDropped || s == EnrollmentStatusCompleted
}

// Enrollment captures a student's registration to a course.
// WaitlistPosition is set iff status is WAITLISTED; positions for a course
// form a dense 1..N sequence ordered by join time.
type Enrollment struct {
	ID               string           `db:"id" json:"id"`
	StudentID        string           `db:"student_id" json:"student_id"`
	CourseID         string           `db:"course_id" json:"course_id"`
	Status           EnrollmentStatus `db:"status" json:"status"`
	WaitlistPosition *int             `db:"waitlist_position" json:"waitlist_position,omitempty"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail enriches Enrollment with student and course info.
type EnrollmentDetail struct {
	Enrollment
	StudentName string `db:"student_name" json:"student_name"`
	CourseCode  string `db:"course_code" json:"course_code"`
	CourseName  string `db:"course_name" json:"course_name"`
}

// EnrollmentWithCourse pairs an enrollment with its fully loaded course.
// Used by the credit-limit and schedule-conflict rules.
type EnrollmentWithCourse struct {
	Enrollment Enrollment
	Course     Course
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	CourseID  string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

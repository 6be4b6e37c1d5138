package models

import "time"

// NotificationKind classifies enrollment lifecycle events.
type NotificationKind string

// Notification kinds emitted by the enrollment engine.
const (
	NotificationEnrollmentCreated  NotificationKind = "ENROLLMENT_CREATED"
	NotificationEnrollmentApproved NotificationKind = "ENROLLMENT_APPROVED"
	NotificationWaitlistPromoted   NotificationKind = "WAITLIST_PROMOTED"
	NotificationEnrollmentDropped  NotificationKind = "ENROLLMENT_DROPPED"
	NotificationCourseCompleted    NotificationKind = "COURSE_COMPLETED"
)

// Notification is a persisted message for a student's inbox.
type Notification struct {
	ID        string           `db:"id" json:"id"`
	StudentID string           `db:"student_id" json:"student_id"`
	Kind      NotificationKind `db:"kind" json:"kind"`
	Title     string           `db:"title" json:"title"`
	Body      string           `db:"body" json:"body"`
	Link      string           `db:"link" json:"link,omitempty"`
	ReadAt    *time.Time       `db:"read_at" json:"read_at,omitempty"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

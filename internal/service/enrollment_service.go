package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campushq/registrar-api/internal/models"
	"github.com/campushq/registrar-api/internal/repository"
	appErrors "github.com/campushq/registrar-api/pkg/errors"
)

type enrollmentLedger interface {
	WithCourseLock(ctx context.Context, courseID string, fn func(tx repository.LedgerTx) error) error
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type eligibilityValidator interface {
	Validate(ctx context.Context, student *models.Student, course *models.Course) error
}

type enrollmentNotifier interface {
	Notify(studentID string, kind models.NotificationKind, title, body, link string)
}

type admissionRecorder interface {
	RecordAdmissionDecision(outcome string)
	RecordWaitlistPromotion()
}

// EnrollRequest describes an enrollment attempt.
type EnrollRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	CourseID  string `json:"course_id" validate:"required"`
}

// BulkCompleteRequest marks many enrollments completed at once.
type BulkCompleteRequest struct {
	EnrollmentIDs []string `json:"enrollment_ids" validate:"required,min=1"`
}

// BulkCompleteFailure records one failed item of a bulk operation.
type BulkCompleteFailure struct {
	EnrollmentID string           `json:"enrollment_id"`
	Error        *appErrors.Error `json:"error"`
}

// BulkCompleteResult aggregates a bulk completion outcome.
type BulkCompleteResult struct {
	Completed []string              `json:"completed"`
	Failures  []BulkCompleteFailure `json:"failures"`
}

// EnrollmentService is the admission-control engine: it decides whether an
// enrollment is admitted, waitlisted or rejected, and keeps seat and waitlist
// state consistent as students enroll, drop and complete courses.
type EnrollmentService struct {
	ledger      enrollmentLedger
	courses     courseReader
	students    studentReader
	semesters   semesterReader
	eligibility eligibilityValidator
	notifier    enrollmentNotifier
	metrics     admissionRecorder
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(ledger enrollmentLedger, courses courseReader, students studentReader, semesters semesterReader, eligibility eligibilityValidator, notifier enrollmentNotifier, metrics admissionRecorder, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		ledger:      ledger,
		courses:     courses,
		students:    students,
		semesters:   semesters,
		eligibility: eligibility,
		notifier:    notifier,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source.
func (s *EnrollmentService) WithClock(now func() time.Time) *EnrollmentService {
	if now != nil {
		s.now = now
	}
	return s
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.ledger.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return enrollments, pagination, nil
}

// Get returns one enrollment with student and course context.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.ledger.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrEnrollmentNotFound, fmt.Sprintf("enrollment %s not found", id))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return detail, nil
}

// Enroll runs eligibility and, if it passes, admits the student into the
// course or onto its waitlist. The capacity check and insert execute inside
// the per-course lock so concurrent admissions for the same course are
// serialised.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrStudentNotFound, fmt.Sprintf("student %s not found", req.StudentID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrCourseNotFound, fmt.Sprintf("course %s not found", req.CourseID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	if err := s.eligibility.Validate(ctx, student, course); err != nil {
		s.recordDecision("rejected")
		return nil, err
	}

	enrollment := &models.Enrollment{StudentID: student.ID, CourseID: course.ID}
	err = s.ledger.WithCourseLock(ctx, course.ID, func(tx repository.LedgerTx) error {
		// The duplicate check re-runs under the lock: another request for the
		// same pair may have committed since validation.
		blocking, err := tx.FindBlocking(ctx, student.ID, course.ID)
		if err != nil {
			return err
		}
		if blocking != nil {
			return appErrors.Clone(appErrors.ErrAlreadyEnrolled, fmt.Sprintf("student already has a %s enrollment for course %s", blocking.Status, course.Code))
		}

		seated, err := tx.CountSeated(ctx, course.ID)
		if err != nil {
			return err
		}
		if seated < course.Capacity {
			enrollment.Status = models.EnrollmentStatusPendingPayment
		} else {
			waitlisted, err := tx.CountWaitlisted(ctx, course.ID)
			if err != nil {
				return err
			}
			position := waitlisted + 1
			enrollment.Status = models.EnrollmentStatusWaitlisted
			enrollment.WaitlistPosition = &position
		}
		return tx.Insert(ctx, enrollment)
	})
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) && appErr.Status < 500 {
			s.recordDecision("rejected")
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to admit enrollment")
	}

	s.recordDecision(strings.ToLower(string(enrollment.Status)))
	s.notifyEnrollmentCreated(student.ID, course, enrollment)

	detail, err := s.ledger.FindDetailByID(ctx, enrollment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	return detail, nil
}

// ApprovePayment flips a PENDING_PAYMENT enrollment to ACTIVE. Called by the
// payment collaborator once a payment clears.
func (s *EnrollmentService) ApprovePayment(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	enrollment, err := s.loadEnrollment(ctx, id)
	if err != nil {
		return nil, err
	}
	course, err := s.loadCourse(ctx, enrollment.CourseID)
	if err != nil {
		return nil, err
	}

	err = s.ledger.WithCourseLock(ctx, enrollment.CourseID, func(tx repository.LedgerTx) error {
		current, err := tx.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != models.EnrollmentStatusPendingPayment || !models.CanTransition(current.Status, models.EnrollmentStatusActive) {
			return transitionError(current.Status, models.EnrollmentStatusActive)
		}
		return tx.UpdateStatus(ctx, id, models.EnrollmentStatusActive, nil)
	})
	if err != nil {
		return nil, s.asDomainError(err, "failed to approve enrollment")
	}

	s.notify(enrollment.StudentID, models.NotificationEnrollmentApproved,
		"Enrollment confirmed",
		fmt.Sprintf("Your enrollment in %s is now active.", course.Code),
		"/enrollments/"+id)
	return s.detail(ctx, id)
}

// Drop voluntarily leaves a course before the drop deadline. The status
// change and any waitlist promotion happen in one transaction.
func (s *EnrollmentService) Drop(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	enrollment, err := s.loadEnrollment(ctx, id)
	if err != nil {
		return nil, err
	}
	course, err := s.loadCourse(ctx, enrollment.CourseID)
	if err != nil {
		return nil, err
	}

	if course.SemesterID != nil {
		semester, err := s.semesters.FindByID(ctx, *course.SemesterID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load semester")
		}
		if semester != nil && semester.DropDeadline != nil && s.now().After(*semester.DropDeadline) {
			return nil, appErrors.Clone(appErrors.ErrDropDeadlinePassed, fmt.Sprintf("drop deadline passed on %s", semester.DropDeadline.Format("2006-01-02")))
		}
	}

	var promoted *models.Enrollment
	err = s.ledger.WithCourseLock(ctx, course.ID, func(tx repository.LedgerTx) error {
		current, err := tx.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if !models.CanTransition(current.Status, models.EnrollmentStatusDropped) {
			return transitionError(current.Status, models.EnrollmentStatusDropped)
		}
		if err := tx.UpdateStatus(ctx, id, models.EnrollmentStatusDropped, nil); err != nil {
			return err
		}
		promoted, err = s.promoteLocked(ctx, tx, course)
		return err
	})
	if err != nil {
		return nil, s.asDomainError(err, "failed to drop enrollment")
	}

	s.notify(enrollment.StudentID, models.NotificationEnrollmentDropped,
		"Enrollment dropped",
		fmt.Sprintf("You have been unenrolled from %s.", course.Code),
		"/enrollments/"+id)
	s.notifyPromotion(promoted, course)
	return s.detail(ctx, id)
}

// Complete marks an ACTIVE enrollment COMPLETED at end of term and frees the
// seat for the waitlist.
func (s *EnrollmentService) Complete(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	enrollment, err := s.loadEnrollment(ctx, id)
	if err != nil {
		return nil, err
	}
	course, err := s.loadCourse(ctx, enrollment.CourseID)
	if err != nil {
		return nil, err
	}

	var promoted *models.Enrollment
	err = s.ledger.WithCourseLock(ctx, course.ID, func(tx repository.LedgerTx) error {
		current, err := tx.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if !models.CanTransition(current.Status, models.EnrollmentStatusCompleted) {
			return transitionError(current.Status, models.EnrollmentStatusCompleted)
		}
		if err := tx.UpdateStatus(ctx, id, models.EnrollmentStatusCompleted, nil); err != nil {
			return err
		}
		promoted, err = s.promoteLocked(ctx, tx, course)
		return err
	})
	if err != nil {
		return nil, s.asDomainError(err, "failed to complete enrollment")
	}

	s.notify(enrollment.StudentID, models.NotificationCourseCompleted,
		"Course completed",
		fmt.Sprintf("You have completed %s.", course.Code),
		"/enrollments/"+id)
	s.notifyPromotion(promoted, course)
	return s.detail(ctx, id)
}

// BulkComplete completes each enrollment independently; one student's
// rejection never blocks the rest of the batch.
func (s *EnrollmentService) BulkComplete(ctx context.Context, req BulkCompleteRequest) (*BulkCompleteResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk completion payload")
	}
	result := &BulkCompleteResult{}
	for _, id := range req.EnrollmentIDs {
		if _, err := s.Complete(ctx, id); err != nil {
			result.Failures = append(result.Failures, BulkCompleteFailure{EnrollmentID: id, Error: appErrors.FromError(err)})
			continue
		}
		result.Completed = append(result.Completed, id)
	}
	return result, nil
}

// promoteLocked runs the waitlist promoter inside an already-locked course
// scope. It promotes at most one entry and renumbers the rest so positions
// stay dense. The capacity recheck guards against stale triggers.
func (s *EnrollmentService) promoteLocked(ctx context.Context, tx repository.LedgerTx, course *models.Course) (*models.Enrollment, error) {
	waitlisted, err := tx.ListWaitlistedOrdered(ctx, course.ID)
	if err != nil {
		return nil, err
	}
	if len(waitlisted) == 0 {
		return nil, nil
	}

	seated, err := tx.CountSeated(ctx, course.ID)
	if err != nil {
		return nil, err
	}
	if seated >= course.Capacity {
		// No seat freed; just close any gap left by a waitlisted drop.
		return nil, renumber(ctx, tx, waitlisted)
	}

	head := waitlisted[0]
	if err := tx.UpdateStatus(ctx, head.ID, models.EnrollmentStatusActive, nil); err != nil {
		return nil, err
	}
	if err := renumber(ctx, tx, waitlisted[1:]); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordWaitlistPromotion()
	}
	head.Status = models.EnrollmentStatusActive
	head.WaitlistPosition = nil
	return &head, nil
}

// renumber rewrites waitlist positions as a dense 1..N sequence preserving
// relative order. Runs inside the course lock; any failure rolls back the
// whole transaction.
func renumber(ctx context.Context, tx repository.LedgerTx, waitlisted []models.Enrollment) error {
	for i, e := range waitlisted {
		want := i + 1
		if e.WaitlistPosition != nil && *e.WaitlistPosition == want {
			continue
		}
		if err := tx.SetWaitlistPosition(ctx, e.ID, want); err != nil {
			return err
		}
	}
	return nil
}

func (s *EnrollmentService) loadEnrollment(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.ledger.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrEnrollmentNotFound, fmt.Sprintf("enrollment %s not found", id))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

func (s *EnrollmentService) loadCourse(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrCourseNotFound, fmt.Sprintf("course %s not found", id))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

func (s *EnrollmentService) detail(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.ledger.FindDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	return detail, nil
}

func (s *EnrollmentService) asDomainError(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrEnrollmentNotFound, "enrollment not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func (s *EnrollmentService) recordDecision(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordAdmissionDecision(outcome)
	}
}

func (s *EnrollmentService) notify(studentID string, kind models.NotificationKind, title, body, link string) {
	if s.notifier != nil {
		s.notifier.Notify(studentID, kind, title, body, link)
	}
}

func (s *EnrollmentService) notifyEnrollmentCreated(studentID string, course *models.Course, enrollment *models.Enrollment) {
	switch enrollment.Status {
	case models.EnrollmentStatusWaitlisted:
		position := 0
		if enrollment.WaitlistPosition != nil {
			position = *enrollment.WaitlistPosition
		}
		s.notify(studentID, models.NotificationEnrollmentCreated,
			"Added to waitlist",
			fmt.Sprintf("%s is full; you are number %d on the waitlist.", course.Code, position),
			"/enrollments/"+enrollment.ID)
	default:
		s.notify(studentID, models.NotificationEnrollmentCreated,
			"Enrollment received",
			fmt.Sprintf("Your enrollment in %s is awaiting payment.", course.Code),
			"/enrollments/"+enrollment.ID)
	}
}

func (s *EnrollmentService) notifyPromotion(promoted *models.Enrollment, course *models.Course) {
	if promoted == nil {
		return
	}
	s.notify(promoted.StudentID, models.NotificationWaitlistPromoted,
		"Promoted from waitlist",
		fmt.Sprintf("A seat opened in %s; your enrollment is now active.", course.Code),
		"/enrollments/"+promoted.ID)
}

func transitionError(from, to models.EnrollmentStatus) error {
	return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot transition enrollment from %s to %s", from, to))
}

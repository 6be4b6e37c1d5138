package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/campushq/registrar-api/internal/models"
	appErrors "github.com/campushq/registrar-api/pkg/errors"
)

type eligibilityLedger interface {
	FindBlocking(ctx context.Context, studentID, courseID string) (*models.Enrollment, error)
	ListActiveByStudent(ctx context.Context, studentID string) ([]models.EnrollmentWithCourse, error)
	ListCompletedCourseIDs(ctx context.Context, studentID string) ([]string, error)
}

type semesterReader interface {
	FindByID(ctx context.Context, id string) (*models.Semester, error)
}

// EligibilityService runs the admission rule pipeline. Rules execute in a
// fixed order and the first failure wins; later rules are more expensive and
// their messages more specific. Validation reads ledger state but never
// mutates it, so the verdict is stable until an enrollment changes.
type EligibilityService struct {
	ledger     eligibilityLedger
	semesters  semesterReader
	maxCredits int
	now        func() time.Time
	logger     *zap.Logger
}

// NewEligibilityService constructs the validator.
func NewEligibilityService(ledger eligibilityLedger, semesters semesterReader, maxCredits int, logger *zap.Logger) *EligibilityService {
	if maxCredits <= 0 {
		maxCredits = 18
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EligibilityService{
		ledger:     ledger,
		semesters:  semesters,
		maxCredits: maxCredits,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger,
	}
}

// WithClock overrides the time source.
func (s *EligibilityService) WithClock(now func() time.Time) *EligibilityService {
	if now != nil {
		s.now = now
	}
	return s
}

// Validate checks whether the student may enroll in the course. Returns nil
// when every rule passes, or the first typed rejection.
func (s *EligibilityService) Validate(ctx context.Context, student *models.Student, course *models.Course) error {
	// 1. Role check.
	if student.Role != models.RoleStudent {
		return appErrors.Clone(appErrors.ErrNotAStudent, fmt.Sprintf("account %s has role %s, only students can enroll", student.ID, student.Role))
	}

	// 2. Duplicate-active check. DROPPED/COMPLETED history does not block.
	blocking, err := s.ledger.FindBlocking(ctx, student.ID, course.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing enrollment")
	}
	if blocking != nil {
		return appErrors.Clone(appErrors.ErrAlreadyEnrolled, fmt.Sprintf("student already has a %s enrollment for course %s", blocking.Status, course.Code))
	}

	// 3. Semester window check.
	if course.SemesterID != nil {
		semester, err := s.semesters.FindByID(ctx, *course.SemesterID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrSemesterNotFound, fmt.Sprintf("semester %s not found", *course.SemesterID))
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load semester")
		}
		now := s.now()
		if !semester.Active || !semester.RegistrationOpen || !semester.EnrollmentWindowContains(now) {
			return appErrors.Clone(appErrors.ErrPeriodClosed, fmt.Sprintf("enrollment period closed for %s: window %s to %s",
				semester.Code,
				semester.EnrollmentStart.Format(time.RFC3339),
				semester.EnrollmentEnd.Format(time.RFC3339)))
		}
	}

	active, err := s.ledger.ListActiveByStudent(ctx, student.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active enrollments")
	}

	// 4. Credit-limit check. Courses without a semester never trigger it and
	// are excluded from the sum.
	if course.SemesterID != nil {
		current := 0
		for _, e := range active {
			if e.Course.SemesterID != nil && *e.Course.SemesterID == *course.SemesterID {
				current += e.Course.CreditHours
			}
		}
		if current+course.CreditHours > s.maxCredits {
			return appErrors.Clone(appErrors.ErrCreditLimitExceeded, fmt.Sprintf("credit limit exceeded: current %d, attempted %d, max %d",
				current, course.CreditHours, s.maxCredits))
		}
	}

	// 5. Prerequisite check.
	if len(course.Prerequisites) > 0 {
		completedIDs, err := s.ledger.ListCompletedCourseIDs(ctx, student.ID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load completed courses")
		}
		completed := make(map[string]struct{}, len(completedIDs))
		for _, id := range completedIDs {
			completed[id] = struct{}{}
		}
		var missing []string
		for _, prereq := range course.Prerequisites {
			if _, ok := completed[prereq.ID]; !ok {
				missing = append(missing, prereq.Code)
			}
		}
		if len(missing) > 0 {
			return appErrors.Clone(appErrors.ErrPrerequisiteNotMet, fmt.Sprintf("missing prerequisites: %s", strings.Join(missing, ", ")))
		}
	}

	// 6. Schedule-conflict check.
	if course.HasSchedule() {
		for _, e := range active {
			if len(e.Course.Schedule) == 0 {
				continue
			}
			if models.SchedulesConflict(course.Schedule, e.Course.Schedule) {
				return appErrors.Clone(appErrors.ErrScheduleConflict, fmt.Sprintf("schedule conflict between %s and %s", course.Code, e.Course.Code))
			}
		}
	}

	return nil
}

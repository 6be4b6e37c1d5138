package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campushq/registrar-api/internal/models"
	"github.com/campushq/registrar-api/internal/repository"
	appErrors "github.com/campushq/registrar-api/pkg/errors"
)

// fakeLedger is an in-memory enrollment ledger. WithCourseLock serialises
// callers on a mutex and restores a snapshot when fn fails, mirroring the
// transactional all-or-nothing behaviour of the real repository.
type fakeLedger struct {
	mu   sync.Mutex
	seq  int
	byID map[string]*models.Enrollment

	// failSetPositionFor makes SetWaitlistPosition fail for one enrollment,
	// to exercise transaction rollback.
	failSetPositionFor string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{byID: make(map[string]*models.Enrollment)}
}

func (f *fakeLedger) WithCourseLock(ctx context.Context, courseID string, fn func(tx repository.LedgerTx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	snapshot := make(map[string]*models.Enrollment, len(f.byID))
	for id, e := range f.byID {
		clone := *e
		snapshot[id] = &clone
	}

	if err := fn(&fakeTx{ledger: f}); err != nil {
		f.byID = snapshot
		return err
	}
	return nil
}

func (f *fakeLedger) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var details []models.EnrollmentDetail
	for _, e := range f.byID {
		if filter.StudentID != "" && e.StudentID != filter.StudentID {
			continue
		}
		if filter.CourseID != "" && e.CourseID != filter.CourseID {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		details = append(details, models.EnrollmentDetail{Enrollment: *e})
	}
	return details, len(details), nil
}

func (f *fakeLedger) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.findLocked(id)
}

func (f *fakeLedger) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, err := f.findLocked(id)
	if err != nil {
		return nil, err
	}
	return &models.EnrollmentDetail{Enrollment: *e}, nil
}

func (f *fakeLedger) findLocked(id string) (*models.Enrollment, error) {
	e, ok := f.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *e
	return &clone, nil
}

func (f *fakeLedger) waitlistLocked(courseID string) []models.Enrollment {
	var list []models.Enrollment
	for _, e := range f.byID {
		if e.CourseID == courseID && e.Status == models.EnrollmentStatusWaitlisted {
			list = append(list, *e)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return *list[i].WaitlistPosition < *list[j].WaitlistPosition
	})
	return list
}

// statusesFor returns every enrollment for a course keyed by student.
func (f *fakeLedger) statusesFor(courseID string) map[string]models.Enrollment {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make(map[string]models.Enrollment)
	for _, e := range f.byID {
		if e.CourseID == courseID {
			result[e.StudentID] = *e
		}
	}
	return result
}

// fakeTx operates on the ledger while WithCourseLock holds the mutex.
type fakeTx struct {
	ledger *fakeLedger
}

func (t *fakeTx) CountActive(ctx context.Context, courseID string) (int, error) {
	count := 0
	for _, e := range t.ledger.byID {
		if e.CourseID == courseID && e.Status == models.EnrollmentStatusActive {
			count++
		}
	}
	return count, nil
}

func (t *fakeTx) CountSeated(ctx context.Context, courseID string) (int, error) {
	count := 0
	for _, e := range t.ledger.byID {
		if e.CourseID == courseID &&
			(e.Status == models.EnrollmentStatusActive || e.Status == models.EnrollmentStatusPendingPayment) {
			count++
		}
	}
	return count, nil
}

func (t *fakeTx) CountWaitlisted(ctx context.Context, courseID string) (int, error) {
	return len(t.ledger.waitlistLocked(courseID)), nil
}

func (t *fakeTx) FindBlocking(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	for _, e := range t.ledger.byID {
		if e.StudentID != studentID || e.CourseID != courseID {
			continue
		}
		for _, blocking := range models.BlockingStatuses {
			if e.Status == blocking {
				clone := *e
				return &clone, nil
			}
		}
	}
	return nil, nil
}

func (t *fakeTx) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	return t.ledger.findLocked(id)
}

func (t *fakeTx) Insert(ctx context.Context, enrollment *models.Enrollment) error {
	t.ledger.seq++
	if enrollment.ID == "" {
		enrollment.ID = fmt.Sprintf("enr-%d", t.ledger.seq)
	}
	enrollment.CreatedAt = time.Now().UTC()
	enrollment.UpdatedAt = enrollment.CreatedAt
	clone := *enrollment
	t.ledger.byID[enrollment.ID] = &clone
	return nil
}

func (t *fakeTx) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, waitlistPosition *int) error {
	e, ok := t.ledger.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	e.Status = status
	e.WaitlistPosition = waitlistPosition
	e.UpdatedAt = time.Now().UTC()
	return nil
}

func (t *fakeTx) SetWaitlistPosition(ctx context.Context, id string, position int) error {
	if t.ledger.failSetPositionFor == id {
		return fmt.Errorf("update waitlist position: connection reset")
	}
	e, ok := t.ledger.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	pos := position
	e.WaitlistPosition = &pos
	return nil
}

func (t *fakeTx) ListWaitlistedOrdered(ctx context.Context, courseID string) ([]models.Enrollment, error) {
	return t.ledger.waitlistLocked(courseID), nil
}

type fakeCourseReader struct {
	courses map[string]*models.Course
}

func (f *fakeCourseReader) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := f.courses[id]; ok {
		clone := *c
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

type fakeStudentReader struct {
	students map[string]*models.Student
}

func (f *fakeStudentReader) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := f.students[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

type stubEligibility struct {
	err error
}

func (s *stubEligibility) Validate(ctx context.Context, student *models.Student, course *models.Course) error {
	return s.err
}

type notifierEvent struct {
	StudentID string
	Kind      models.NotificationKind
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifierEvent
}

func (r *recordingNotifier) Notify(studentID string, kind models.NotificationKind, title, body, link string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, notifierEvent{StudentID: studentID, Kind: kind})
}

func (r *recordingNotifier) kinds(studentID string) []models.NotificationKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kinds []models.NotificationKind
	for _, e := range r.events {
		if e.StudentID == studentID {
			kinds = append(kinds, e.Kind)
		}
	}
	return kinds
}

type recordingMetrics struct {
	mu         sync.Mutex
	decisions  map[string]int
	promotions int
}

func (r *recordingMetrics) RecordAdmissionDecision(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.decisions == nil {
		r.decisions = make(map[string]int)
	}
	r.decisions[outcome]++
}

func (r *recordingMetrics) RecordWaitlistPromotion() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.promotions++
}

type enrollmentFixture struct {
	svc      *EnrollmentService
	ledger   *fakeLedger
	notifier *recordingNotifier
	metrics  *recordingMetrics
}

func newEnrollmentFixture(t *testing.T, courses map[string]*models.Course, semesters map[string]*models.Semester) *enrollmentFixture {
	t.Helper()
	ledger := newFakeLedger()
	notifier := &recordingNotifier{}
	metrics := &recordingMetrics{}
	students := &fakeStudentReader{students: map[string]*models.Student{}}
	for i := 1; i <= 30; i++ {
		id := fmt.Sprintf("s%d", i)
		students.students[id] = &models.Student{ID: id, Role: models.RoleStudent, Active: true}
	}
	svc := NewEnrollmentService(
		ledger,
		&fakeCourseReader{courses: courses},
		students,
		&mockSemesterReader{semesters: semesters},
		&stubEligibility{},
		notifier,
		metrics,
		nil,
		zap.NewNop(),
	)
	return &enrollmentFixture{svc: svc, ledger: ledger, notifier: notifier, metrics: metrics}
}

func TestEnrollAdmitsThenWaitlists(t *testing.T) {
	courses := map[string]*models.Course{
		"c1": {ID: "c1", Code: "CS101", Capacity: 2},
	}
	fx := newEnrollmentFixture(t, courses, nil)
	ctx := context.Background()

	first, err := fx.svc.Enroll(ctx, EnrollRequest{StudentID: "s1", CourseID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusPendingPayment, first.Status)
	assert.Nil(t, first.WaitlistPosition)

	second, err := fx.svc.Enroll(ctx, EnrollRequest{StudentID: "s2", CourseID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusPendingPayment, second.Status)

	third, err := fx.svc.Enroll(ctx, EnrollRequest{StudentID: "s3", CourseID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusWaitlisted, third.Status)
	require.NotNil(t, third.WaitlistPosition)
	assert.Equal(t, 1, *third.WaitlistPosition)

	fourth, err := fx.svc.Enroll(ctx, EnrollRequest{StudentID: "s4", CourseID: "c1"})
	require.NoError(t, err)
	require.NotNil(t, fourth.WaitlistPosition)
	assert.Equal(t, 2, *fourth.WaitlistPosition)

	assert.Equal(t, 2, fx.metrics.decisions["pending_payment"])
	assert.Equal(t, 2, fx.metrics.decisions["waitlisted"])
}

func TestEnrollRejectsDuplicateUnderLock(t *testing.T) {
	courses := map[string]*models.Course{
		"c1": {ID: "c1", Code: "CS101", Capacity: 5},
	}
	fx := newEnrollmentFixture(t, courses, nil)
	ctx := context.Background()

	_, err := fx.svc.Enroll(ctx, EnrollRequest{StudentID: "s1", CourseID: "c1"})
	require.NoError(t, err)

	// The stub eligibility validator passes everything, so the duplicate is
	// caught by the in-transaction recheck.
	_, err = fx.svc.Enroll(ctx, EnrollRequest{StudentID: "s1", CourseID: "c1"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrAlreadyEnrolled))
}

func TestEnrollPropagatesEligibilityRejection(t *testing.T) {
	courses := map[string]*models.Course{
		"c1": {ID: "c1", Code: "CS101", Capacity: 5},
	}
	fx := newEnrollmentFixture(t, courses, nil)
	fx.svc.eligibility = &stubEligibility{err: appErrors.ErrCreditLimitExceeded}

	_, err := fx.svc.Enroll(context.Background(), EnrollRequest{StudentID: "s1", CourseID: "c1"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrCreditLimitExceeded))
	assert.Equal(t, 1, fx.metrics.decisions["rejected"])
	assert.Empty(t, fx.ledger.statusesFor("c1"))
}

func TestEnrollUnknownStudentAndCourse(t *testing.T) {
	courses := map[string]*models.Course{
		"c1": {ID: "c1", Code: "CS101", Capacity: 5},
	}
	fx := newEnrollmentFixture(t, courses, nil)
	ctx := context.Background()

	_, err := fx.svc.Enroll(ctx, EnrollRequest{StudentID: "ghost", CourseID: "c1"})
	assert.True(t, appErrors.Is(err, appErrors.ErrStudentNotFound))

	_, err = fx.svc.Enroll(ctx, EnrollRequest{StudentID: "s1", CourseID: "ghost"})
	assert.True(t, appErrors.Is(err, appErrors.ErrCourseNotFound))
}

func TestConcurrentEnrollNeverOveradmits(t *testing.T) {
	courses := map[string]*models.Course{
		"c1": {ID: "c1", Code: "CS101", Capacity: 1},
	}
	fx := newEnrollmentFixture(t, courses, nil)
	ctx := context.Background()

	const contenders = 10
	var wg sync.WaitGroup
	for i := 1; i <= contenders; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := fx.svc.Enroll(ctx, EnrollRequest{StudentID: fmt.Sprintf("s%d", n), CourseID: "c1"})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	admitted := 0
	positions := make([]int, 0, contenders)
	for _, e := range fx.ledger.statusesFor("c1") {
		switch e.Status {
		case models.EnrollmentStatusPendingPayment:
			admitted++
		case models.EnrollmentStatusWaitlisted:
			require.NotNil(t, e.WaitlistPosition)
			positions = append(positions, *e.WaitlistPosition)
		default:
			t.Fatalf("unexpected status %s", e.Status)
		}
	}

	assert.Equal(t, 1, admitted, "exactly one contender wins the seat")
	require.Len(t, positions, contenders-1)
	sort.Ints(positions)
	for i, pos := range positions {
		assert.Equal(t, i+1, pos, "waitlist positions must be dense")
	}
}

func TestApproveThenDropPromotesWaitlist(t *testing.T) {
	courses := map[string]*models.Course{
		"c1": {ID: "c1", Code: "CS101", Capacity: 1},
	}
	fx := newEnrollmentFixture(t, courses, nil)
	ctx := context.Background()

	first, err := fx.svc.Enroll(ctx, EnrollRequest{StudentID: "s1", CourseID: "c1"})
	require.NoError(t, err)
	require.Equal(t, models.EnrollmentStatusPendingPayment, first.Status)

	second, err := fx.svc.Enroll(ctx, EnrollRequest{StudentID: "s2", CourseID: "c1"})
	require.NoError(t, err)
	require.Equal(t, models.EnrollmentStatusWaitlisted, second.Status)

	approved, err := fx.svc.ApprovePayment(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusActive, approved.Status)

	dropped, err := fx.svc.Drop(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusDropped, dropped.Status)

	promoted, err := fx.svc.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusActive, promoted.Status)
	assert.Nil(t, promoted.WaitlistPosition)

	assert.Equal(t, 1, fx.metrics.promotions)
	assert.Contains(t, fx.notifier.kinds("s2"), models.NotificationWaitlistPromoted)
	assert.Contains(t, fx.notifier.kinds("s1"), models.NotificationEnrollmentDropped)
}

func TestDropOfWaitlistedClosesGapWithoutPromotion(t *testing.T) {
	courses := map[string]*models.Course{
		"c1": {ID: "c1", Code: "CS101", Capacity: 1},
	}
	fx := newEnrollmentFixture(t, courses, nil)
	ctx := context.Background()

	_, err := fx.svc.Enroll(ctx, EnrollRequest{StudentID: "s1", CourseID: "c1"})
	require.NoError(t, err)
	_, err = fx.svc.Enroll(ctx, EnrollRequest{StudentID: "s2", CourseID: "c1"})
	require.NoError(t, err)
	w2, err := fx.svc.Enroll(ctx, EnrollRequest{StudentID: "s3", CourseID: "c1"})
	require.NoError(t, err)
	_, err = fx.svc.Enroll(ctx, EnrollRequest{StudentID: "s4", CourseID: "c1"})
	require.NoError(t, err)

	// The middle waitlist entry leaves. The seat holder stays, so nobody is
	// promoted, but positions must close the gap.
	_, err = fx.svc.Drop(ctx, w2.ID)
	require.NoError(t, err)

	statuses := fx.ledger.statusesFor("c1")
	assert.Equal(t, models.EnrollmentStatusPendingPayment, statuses["s1"].Status)
	assert.Equal(t, models.EnrollmentStatusDropped, statuses["s3"].Status)

	require.NotNil(t, statuses["s2"].WaitlistPosition)
	assert.Equal(t, 1, *statuses["s2"].WaitlistPosition)
	require.NotNil(t, statuses["s4"].WaitlistPosition)
	assert.Equal(t, 2, *statuses["s4"].WaitlistPosition)

	assert.Equal(t, 0, fx.metrics.promotions)
}

func TestDropAfterDeadlineRejected(t *testing.T) {
	deadline := time.Now().UTC().Add(-48 * time.Hour)
	semesters := map[string]*models.Semester{
		"sem-1": {ID: "sem-1", Code: "2026-SPRING", DropDeadline: &deadline},
	}
	courses := map[string]*models.Course{
		"c1": {ID: "c1", Code: "CS101", Capacity: 1, SemesterID: strPtr("sem-1")},
	}
	fx := newEnrollmentFixture(t, courses, semesters)
	ctx := context.Background()

	enrollment, err := fx.svc.Enroll(ctx, EnrollRequest{StudentID: "s1", CourseID: "c1"})
	require.NoError(t, err)

	_, err = fx.svc.Drop(ctx, enrollment.ID)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrDropDeadlinePassed))

	current, err := fx.svc.Get(ctx, enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusPendingPayment, current.Status)
}

func TestDropBeforeDeadlineAllowed(t *testing.T) {
	deadline := time.Now().UTC().Add(48 * time.Hour)
	semesters := map[string]*models.Semester{
		"sem-1": {ID: "sem-1", Code: "2026-SPRING", DropDeadline: &deadline},
	}
	courses := map[string]*models.Course{
		"c1": {ID: "c1", Code: "CS101", Capacity: 1, SemesterID: strPtr("sem-1")},
	}
	fx := newEnrollmentFixture(t, courses, semesters)
	ctx := context.Background()

	enrollment, err := fx.svc.Enroll(ctx, EnrollRequest{StudentID: "s1", CourseID: "c1"})
	require.NoError(t, err)

	dropped, err := fx.svc.Drop(ctx, enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusDropped, dropped.Status)
}

func TestApproveRejectsInvalidTransition(t *testing.T) {
	courses := map[string]*models.Course{
		"c1": {ID: "c1", Code: "CS101", Capacity: 1},
	}
	fx := newEnrollmentFixture(t, courses, nil)
	ctx := context.Background()

	enrollment, err := fx.svc.Enroll(ctx, EnrollRequest{StudentID: "s1", CourseID: "c1"})
	require.NoError(t, err)

	_, err = fx.svc.Drop(ctx, enrollment.ID)
	require.NoError(t, err)

	_, err = fx.svc.ApprovePayment(ctx, enrollment.ID)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))
}

func TestDropIsNotRepeatable(t *testing.T) {
	courses := map[string]*models.Course{
		"c1": {ID: "c1", Code: "CS101", Capacity: 1},
	}
	fx := newEnrollmentFixture(t, courses, nil)
	ctx := context.Background()

	enrollment, err := fx.svc.Enroll(ctx, EnrollRequest{StudentID: "s1", CourseID: "c1"})
	require.NoError(t, err)

	_, err = fx.svc.Drop(ctx, enrollment.ID)
	require.NoError(t, err)

	_, err = fx.svc.Drop(ctx, enrollment.ID)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))
}

func TestCompleteFreesSeatForWaitlist(t *testing.T) {
	courses := map[string]*models.Course{
		"c1": {ID: "c1", Code: "CS101", Capacity: 1},
	}
	fx := newEnrollmentFixture(t, courses, nil)
	ctx := context.Background()

	first, err := fx.svc.Enroll(ctx, EnrollRequest{StudentID: "s1", CourseID: "c1"})
	require.NoError(t, err)
	second, err := fx.svc.Enroll(ctx, EnrollRequest{StudentID: "s2", CourseID: "c1"})
	require.NoError(t, err)

	_, err = fx.svc.ApprovePayment(ctx, first.ID)
	require.NoError(t, err)

	completed, err := fx.svc.Complete(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusCompleted, completed.Status)

	promoted, err := fx.svc.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusActive, promoted.Status)
	assert.Contains(t, fx.notifier.kinds("s1"), models.NotificationCourseCompleted)
}

func TestBulkCompleteCollectsPartialFailures(t *testing.T) {
	courses := map[string]*models.Course{
		"c1": {ID: "c1", Code: "CS101", Capacity: 3},
	}
	fx := newEnrollmentFixture(t, courses, nil)
	ctx := context.Background()

	first, err := fx.svc.Enroll(ctx, EnrollRequest{StudentID: "s1", CourseID: "c1"})
	require.NoError(t, err)
	second, err := fx.svc.Enroll(ctx, EnrollRequest{StudentID: "s2", CourseID: "c1"})
	require.NoError(t, err)

	// Only the first enrollment reaches ACTIVE; the second stays pending and
	// cannot be completed.
	_, err = fx.svc.ApprovePayment(ctx, first.ID)
	require.NoError(t, err)

	result, err := fx.svc.BulkComplete(ctx, BulkCompleteRequest{
		EnrollmentIDs: []string{first.ID, second.ID, "missing"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{first.ID}, result.Completed)
	require.Len(t, result.Failures, 2)

	byID := make(map[string]*appErrors.Error)
	for _, failure := range result.Failures {
		byID[failure.EnrollmentID] = failure.Error
	}
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, byID[second.ID].Code)
	assert.Equal(t, appErrors.ErrEnrollmentNotFound.Code, byID["missing"].Code)
}

func TestRenumberFailureRollsBackPromotion(t *testing.T) {
	courses := map[string]*models.Course{
		"c1": {ID: "c1", Code: "CS101", Capacity: 1},
	}
	fx := newEnrollmentFixture(t, courses, nil)
	ctx := context.Background()

	seat, err := fx.svc.Enroll(ctx, EnrollRequest{StudentID: "s1", CourseID: "c1"})
	require.NoError(t, err)
	_, err = fx.svc.Enroll(ctx, EnrollRequest{StudentID: "s2", CourseID: "c1"})
	require.NoError(t, err)
	w2, err := fx.svc.Enroll(ctx, EnrollRequest{StudentID: "s3", CourseID: "c1"})
	require.NoError(t, err)

	// Renumbering the second waitlist entry fails, which must abort the
	// whole drop-and-promote transaction.
	fx.ledger.failSetPositionFor = w2.ID

	_, err = fx.svc.Drop(ctx, seat.ID)
	require.Error(t, err)

	current, err := fx.svc.Get(ctx, seat.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusPendingPayment, current.Status)

	promoted, err := fx.svc.Get(ctx, w2.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusWaitlisted, promoted.Status)
	assert.Equal(t, 0, fx.metrics.promotions)
}

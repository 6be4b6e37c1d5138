package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/campushq/registrar-api/internal/models"
)

// LedgerTx is the transactional view of the enrollment ledger. All mutations
// inside a per-course lock go through it; the transaction commits or rolls
// back as one unit, which keeps waitlist renumbering all-or-nothing.
type LedgerTx interface {
	CountActive(ctx context.Context, courseID string) (int, error)
	CountSeated(ctx context.Context, courseID string) (int, error)
	CountWaitlisted(ctx context.Context, courseID string) (int, error)
	FindBlocking(ctx context.Context, studentID, courseID string) (*models.Enrollment, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	Insert(ctx context.Context, enrollment *models.Enrollment) error
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, waitlistPosition *int) error
	SetWaitlistPosition(ctx context.Context, id string, position int) error
	ListWaitlistedOrdered(ctx context.Context, courseID string) ([]models.Enrollment, error)
}

// EnrollmentRepository owns all enrollment persistence. No other component
// writes enrollment rows.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = `id, student_id, course_id, status, waitlist_position, created_at, updated_at`

// WithCourseLock runs fn inside a transaction holding a per-course advisory
// lock, serialising admissions and promotions for that course. Operations on
// other courses proceed in parallel. Any error from fn rolls the whole
// transaction back.
func (r *EnrollmentRepository) WithCourseLock(ctx context.Context, courseID string, fn func(tx LedgerTx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin course lock tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, courseID); err != nil {
		return fmt.Errorf("acquire course lock: %w", err)
	}

	if err = fn(&ledgerTx{tx: tx}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit course lock tx: %w", err)
	}
	return nil
}

// CountActive returns the number of ACTIVE enrollments for a course.
func (r *EnrollmentRepository) CountActive(ctx context.Context, courseID string) (int, error) {
	return countByStatus(ctx, r.db, courseID, models.EnrollmentStatusActive)
}

// CountSeated returns how many seats a course has committed. Both ACTIVE and
// PENDING_PAYMENT consume a seat; a pending enrollment that is later approved
// must not push the course over capacity.
func (r *EnrollmentRepository) CountSeated(ctx context.Context, courseID string) (int, error) {
	return countSeated(ctx, r.db, courseID)
}

// CountWaitlisted returns the number of WAITLISTED enrollments for a course.
func (r *EnrollmentRepository) CountWaitlisted(ctx context.Context, courseID string) (int, error) {
	return countByStatus(ctx, r.db, courseID, models.EnrollmentStatusWaitlisted)
}

// FindBlocking returns the open enrollment for (student, course), if any.
// DROPPED and COMPLETED records never block.
func (r *EnrollmentRepository) FindBlocking(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	return findBlocking(ctx, r.db, studentID, courseID)
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	return findByID(ctx, r.db, id)
}

// FindDetailByID returns an enrollment with student and course context.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.student_id, e.course_id, e.status, e.waitlist_position, e.created_at, e.updated_at,
        u.full_name AS student_name, c.code AS course_code, c.name AS course_name
        FROM enrollments e
        LEFT JOIN users u ON u.id = e.student_id
        LEFT JOIN courses c ON c.id = e.course_id
        WHERE e.id = $1`
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ListCompletedCourseIDs returns course ids the student has COMPLETED.
func (r *EnrollmentRepository) ListCompletedCourseIDs(ctx context.Context, studentID string) ([]string, error) {
	var ids []string
	const query = `SELECT course_id FROM enrollments WHERE student_id = $1 AND status = $2`
	if err := r.db.SelectContext(ctx, &ids, query, studentID, models.EnrollmentStatusCompleted); err != nil {
		return nil, fmt.Errorf("list completed courses: %w", err)
	}
	return ids, nil
}

type enrollmentCourseRow struct {
	models.Enrollment
	CourseCode        string    `db:"course_code"`
	CourseName        string    `db:"course_name"`
	CourseCreditHours int       `db:"course_credit_hours"`
	CourseCapacity    int       `db:"course_capacity"`
	CourseSemesterID  *string   `db:"course_semester_id"`
	CourseCreatedAt   time.Time `db:"course_created_at"`
}

// ListActiveByStudent returns the student's ACTIVE enrollments with their
// courses fully loaded (credit hours, semester, schedule) for the
// credit-limit and schedule-conflict rules.
func (r *EnrollmentRepository) ListActiveByStudent(ctx context.Context, studentID string) ([]models.EnrollmentWithCourse, error) {
	const query = `SELECT e.id, e.student_id, e.course_id, e.status, e.waitlist_position, e.created_at, e.updated_at,
        c.code AS course_code, c.name AS course_name, c.credit_hours AS course_credit_hours,
        c.capacity AS course_capacity, c.semester_id AS course_semester_id, c.created_at AS course_created_at
        FROM enrollments e
        JOIN courses c ON c.id = e.course_id
        WHERE e.student_id = $1 AND e.status = $2`
	var rows []enrollmentCourseRow
	if err := r.db.SelectContext(ctx, &rows, query, studentID, models.EnrollmentStatusActive); err != nil {
		return nil, fmt.Errorf("list active enrollments: %w", err)
	}

	courseIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		courseIDs = append(courseIDs, row.CourseID)
	}
	schedules, err := loadSchedules(ctx, r.db, courseIDs)
	if err != nil {
		return nil, err
	}

	result := make([]models.EnrollmentWithCourse, 0, len(rows))
	for _, row := range rows {
		result = append(result, models.EnrollmentWithCourse{
			Enrollment: row.Enrollment,
			Course: models.Course{
				ID:          row.CourseID,
				Code:        row.CourseCode,
				Name:        row.CourseName,
				CreditHours: row.CourseCreditHours,
				Capacity:    row.CourseCapacity,
				SemesterID:  row.CourseSemesterID,
				Schedule:    schedules[row.CourseID],
				CreatedAt:   row.CourseCreatedAt,
			},
		})
	}
	return result, nil
}

// ListWaitlistedOrdered returns the waitlist for a course in promotion order.
func (r *EnrollmentRepository) ListWaitlistedOrdered(ctx context.Context, courseID string) ([]models.Enrollment, error) {
	return listWaitlistedOrdered(ctx, r.db, courseID)
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
LEFT JOIN users u ON u.id = e.student_id
LEFT JOIN courses c ON c.id = e.course_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("e.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at":   "e.created_at",
		"student_name": "u.full_name",
		"course_code":  "c.code",
		"status":       "e.status",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "e.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT e.id, e.student_id, e.course_id, e.status, e.waitlist_position, e.created_at, e.updated_at,
        u.full_name AS student_name, c.code AS course_code, c.name AS course_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// ledgerTx implements LedgerTx over a sqlx transaction.
type ledgerTx struct {
	tx *sqlx.Tx
}

func (t *ledgerTx) CountActive(ctx context.Context, courseID string) (int, error) {
	return countByStatus(ctx, t.tx, courseID, models.EnrollmentStatusActive)
}

func (t *ledgerTx) CountSeated(ctx context.Context, courseID string) (int, error) {
	return countSeated(ctx, t.tx, courseID)
}

func (t *ledgerTx) CountWaitlisted(ctx context.Context, courseID string) (int, error) {
	return countByStatus(ctx, t.tx, courseID, models.EnrollmentStatusWaitlisted)
}

func (t *ledgerTx) FindBlocking(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	return findBlocking(ctx, t.tx, studentID, courseID)
}

func (t *ledgerTx) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	return findByID(ctx, t.tx, id)
}

func (t *ledgerTx) Insert(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = now
	}
	enrollment.UpdatedAt = now
	const query = `INSERT INTO enrollments (id, student_id, course_id, status, waitlist_position, created_at, updated_at)
        VALUES (:id, :student_id, :course_id, :status, :waitlist_position, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, t.tx, query, enrollment); err != nil {
		return fmt.Errorf("insert enrollment: %w", err)
	}
	return nil
}

func (t *ledgerTx) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, waitlistPosition *int) error {
	const query = `UPDATE enrollments SET status = $2, waitlist_position = $3, updated_at = $4 WHERE id = $1`
	if _, err := t.tx.ExecContext(ctx, query, id, status, waitlistPosition, time.Now().UTC()); err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	return nil
}

func (t *ledgerTx) SetWaitlistPosition(ctx context.Context, id string, position int) error {
	const query = `UPDATE enrollments SET waitlist_position = $2, updated_at = $3 WHERE id = $1`
	if _, err := t.tx.ExecContext(ctx, query, id, position, time.Now().UTC()); err != nil {
		return fmt.Errorf("update waitlist position: %w", err)
	}
	return nil
}

func (t *ledgerTx) ListWaitlistedOrdered(ctx context.Context, courseID string) ([]models.Enrollment, error) {
	return listWaitlistedOrdered(ctx, t.tx, courseID)
}

// Shared query helpers usable with either the pool or a transaction.

func countByStatus(ctx context.Context, q sqlx.QueryerContext, courseID string, status models.EnrollmentStatus) (int, error) {
	var count int
	const query = `SELECT COUNT(*) FROM enrollments WHERE course_id = $1 AND status = $2`
	if err := sqlx.GetContext(ctx, q, &count, query, courseID, status); err != nil {
		return 0, fmt.Errorf("count %s enrollments: %w", strings.ToLower(string(status)), err)
	}
	return count, nil
}

func countSeated(ctx context.Context, q sqlx.QueryerContext, courseID string) (int, error) {
	var count int
	const query = `SELECT COUNT(*) FROM enrollments WHERE course_id = $1 AND status = ANY($2)`
	seated := []string{string(models.EnrollmentStatusActive), string(models.EnrollmentStatusPendingPayment)}
	if err := sqlx.GetContext(ctx, q, &count, query, courseID, pq.Array(seated)); err != nil {
		return 0, fmt.Errorf("count seated enrollments: %w", err)
	}
	return count, nil
}

func findBlocking(ctx context.Context, q sqlx.QueryerContext, studentID, courseID string) (*models.Enrollment, error) {
	statuses := make([]string, len(models.BlockingStatuses))
	for i, s := range models.BlockingStatuses {
		statuses[i] = string(s)
	}
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE student_id = $1 AND course_id = $2 AND status = ANY($3) LIMIT 1`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := sqlx.GetContext(ctx, q, &enrollment, query, studentID, courseID, pq.Array(statuses)); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find blocking enrollment: %w", err)
	}
	return &enrollment, nil
}

func findByID(ctx context.Context, q sqlx.QueryerContext, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE id = $1`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := sqlx.GetContext(ctx, q, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

func listWaitlistedOrdered(ctx context.Context, q sqlx.QueryerContext, courseID string) ([]models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE course_id = $1 AND status = $2 ORDER BY waitlist_position ASC`, enrollmentColumns)
	var enrollments []models.Enrollment
	if err := sqlx.SelectContext(ctx, q, &enrollments, query, courseID, models.EnrollmentStatusWaitlisted); err != nil {
		return nil, fmt.Errorf("list waitlisted enrollments: %w", err)
	}
	return enrollments, nil
}

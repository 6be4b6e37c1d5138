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

// CourseRepository is the catalog store for courses, including schedule slots
// and prerequisite edges.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

type scheduleSlotRow struct {
	CourseID  string `db:"course_id"`
	DayOfWeek string `db:"day_of_week"`
	StartTime string `db:"start_time"`
	EndTime   string `db:"end_time"`
}

// List returns courses matching the provided filters. Schedule and
// prerequisites are not loaded for list views.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	base := "FROM courses WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.SemesterID != "" {
		conditions = append(conditions, fmt.Sprintf("semester_id = $%d", len(args)+1))
		args = append(args, filter.SemesterID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(code ILIKE $%d OR name ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{"code": true, "name": true, "credit_hours": true, "created_at": true}
	if !allowedSorts[sortBy] {
		sortBy = "code"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
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

	query := fmt.Sprintf("SELECT id, code, name, credit_hours, capacity, instructor, semester_id, created_at, updated_at %s ORDER BY %s %s LIMIT %d OFFSET %d", base, sortBy, order, size, offset)

	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// FindByID loads a course with its schedule slots and prerequisite refs.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, code, name, credit_hours, capacity, instructor, semester_id, created_at, updated_at FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}

	schedules, err := loadSchedules(ctx, r.db, []string{id})
	if err != nil {
		return nil, err
	}
	course.Schedule = schedules[id]

	const prereqQuery = `SELECT c.id, c.code FROM course_prerequisites p JOIN courses c ON c.id = p.prerequisite_id WHERE p.course_id = $1 ORDER BY c.code`
	if err := r.db.SelectContext(ctx, &course.Prerequisites, prereqQuery, id); err != nil {
		return nil, fmt.Errorf("load prerequisites: %w", err)
	}
	return &course, nil
}

// ExistsByCode checks code uniqueness.
func (r *CourseRepository) ExistsByCode(ctx context.Context, code, excludeID string) (bool, error) {
	query := "SELECT 1 FROM courses WHERE code = $1"
	args := []interface{}{code}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check course code: %w", err)
	}
	return true, nil
}

// FindRefs resolves course ids into refs, preserving only the ids that exist.
func (r *CourseRepository) FindRefs(ctx context.Context, ids []string) ([]models.CourseRef, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var refs []models.CourseRef
	const query = `SELECT id, code FROM courses WHERE id = ANY($1) ORDER BY code`
	if err := r.db.SelectContext(ctx, &refs, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("resolve course refs: %w", err)
	}
	return refs, nil
}

// ListPrerequisiteEdges returns the full prerequisite relation as
// course_id -> prerequisite ids. Used for cycle detection before a write.
func (r *CourseRepository) ListPrerequisiteEdges(ctx context.Context) (map[string][]string, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT course_id, prerequisite_id FROM course_prerequisites`)
	if err != nil {
		return nil, fmt.Errorf("list prerequisite edges: %w", err)
	}
	defer rows.Close()

	edges := make(map[string][]string)
	for rows.Next() {
		var courseID, prereqID string
		if err := rows.Scan(&courseID, &prereqID); err != nil {
			return nil, fmt.Errorf("scan prerequisite edge: %w", err)
		}
		edges[courseID] = append(edges[courseID], prereqID)
	}
	return edges, rows.Err()
}

// Create persists a course with its schedule and prerequisite rows.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create course tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO courses (id, code, name, credit_hours, capacity, instructor, semester_id, created_at, updated_at)
        VALUES (:id, :code, :name, :credit_hours, :capacity, :instructor, :semester_id, :created_at, :updated_at)`
	if _, err = sqlx.NamedExecContext(ctx, tx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	if err = writeCourseRelations(ctx, tx, course); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create course tx: %w", err)
	}
	return nil
}

// Update modifies a course. Code is immutable and not written.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update course tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `UPDATE courses SET name = :name, credit_hours = :credit_hours, capacity = :capacity,
        instructor = :instructor, semester_id = :semester_id, updated_at = :updated_at WHERE id = :id`
	if _, err = sqlx.NamedExecContext(ctx, tx, query, course); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM course_schedules WHERE course_id = $1`, course.ID); err != nil {
		return fmt.Errorf("clear course schedules: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM course_prerequisites WHERE course_id = $1`, course.ID); err != nil {
		return fmt.Errorf("clear course prerequisites: %w", err)
	}
	if err = writeCourseRelations(ctx, tx, course); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update course tx: %w", err)
	}
	return nil
}

func writeCourseRelations(ctx context.Context, tx *sqlx.Tx, course *models.Course) error {
	for _, slot := range course.Schedule {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO course_schedules (course_id, day_of_week, start_time, end_time) VALUES ($1, $2, $3, $4)`,
			course.ID, string(slot.Day), slot.Start.String(), slot.End.String()); err != nil {
			return fmt.Errorf("insert course schedule: %w", err)
		}
	}
	for _, ref := range course.Prerequisites {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO course_prerequisites (course_id, prerequisite_id) VALUES ($1, $2)`,
			course.ID, ref.ID); err != nil {
			return fmt.Errorf("insert course prerequisite: %w", err)
		}
	}
	return nil
}

// loadSchedules fetches and parses schedule slots for a set of courses.
func loadSchedules(ctx context.Context, q sqlx.QueryerContext, courseIDs []string) (map[string][]models.ScheduleSlot, error) {
	if len(courseIDs) == 0 {
		return map[string][]models.ScheduleSlot{}, nil
	}
	var rows []scheduleSlotRow
	const query = `SELECT course_id, day_of_week, start_time, end_time FROM course_schedules WHERE course_id = ANY($1) ORDER BY course_id, day_of_week, start_time`
	if err := sqlx.SelectContext(ctx, q, &rows, query, pq.Array(courseIDs)); err != nil {
		return nil, fmt.Errorf("load course schedules: %w", err)
	}
	schedules := make(map[string][]models.ScheduleSlot, len(courseIDs))
	for _, row := range rows {
		slot, err := models.ParseScheduleSlot(row.DayOfWeek, row.StartTime, row.EndTime)
		if err != nil {
			return nil, fmt.Errorf("parse schedule slot for course %s: %w", row.CourseID, err)
		}
		schedules[row.CourseID] = append(schedules[row.CourseID], slot)
	}
	return schedules, nil
}

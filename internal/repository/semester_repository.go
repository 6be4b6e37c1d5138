package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campushq/registrar-api/internal/models"
)

// SemesterRepository handles persistence for academic semesters.
type SemesterRepository struct {
	db *sqlx.DB
}

// NewSemesterRepository instantiates a semester repository.
func NewSemesterRepository(db *sqlx.DB) *SemesterRepository {
	return &SemesterRepository{db: db}
}

const semesterColumns = `id, code, name, active, registration_open, enrollment_start, enrollment_end, drop_deadline, created_at, updated_at`

// List returns all semesters, active first then newest.
func (r *SemesterRepository) List(ctx context.Context) ([]models.Semester, error) {
	query := fmt.Sprintf(`SELECT %s FROM semesters ORDER BY active DESC, enrollment_start DESC`, semesterColumns)
	var semesters []models.Semester
	if err := r.db.SelectContext(ctx, &semesters, query); err != nil {
		return nil, fmt.Errorf("list semesters: %w", err)
	}
	return semesters, nil
}

// FindByID loads a semester by identifier.
func (r *SemesterRepository) FindByID(ctx context.Context, id string) (*models.Semester, error) {
	query := fmt.Sprintf(`SELECT %s FROM semesters WHERE id = $1`, semesterColumns)
	var semester models.Semester
	if err := r.db.GetContext(ctx, &semester, query, id); err != nil {
		return nil, err
	}
	return &semester, nil
}

// FindActive returns the currently active semester.
func (r *SemesterRepository) FindActive(ctx context.Context) (*models.Semester, error) {
	query := fmt.Sprintf(`SELECT %s FROM semesters WHERE active = TRUE LIMIT 1`, semesterColumns)
	var semester models.Semester
	if err := r.db.GetContext(ctx, &semester, query); err != nil {
		return nil, err
	}
	return &semester, nil
}

// ExistsByCode checks semester code uniqueness.
func (r *SemesterRepository) ExistsByCode(ctx context.Context, code, excludeID string) (bool, error) {
	query := "SELECT 1 FROM semesters WHERE code = $1"
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
		return false, fmt.Errorf("check semester code: %w", err)
	}
	return true, nil
}

// Create inserts a new semester record. Semesters are created inactive.
func (r *SemesterRepository) Create(ctx context.Context, semester *models.Semester) error {
	if semester.ID == "" {
		semester.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if semester.CreatedAt.IsZero() {
		semester.CreatedAt = now
	}
	semester.UpdatedAt = now
	semester.Active = false

	const query = `INSERT INTO semesters (id, code, name, active, registration_open, enrollment_start, enrollment_end, drop_deadline, created_at, updated_at)
        VALUES (:id, :code, :name, :active, :registration_open, :enrollment_start, :enrollment_end, :drop_deadline, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, semester); err != nil {
		return fmt.Errorf("create semester: %w", err)
	}
	return nil
}

// Update modifies an existing semester's window fields.
func (r *SemesterRepository) Update(ctx context.Context, semester *models.Semester) error {
	semester.UpdatedAt = time.Now().UTC()
	const query = `UPDATE semesters SET name = :name, registration_open = :registration_open, enrollment_start = :enrollment_start,
        enrollment_end = :enrollment_end, drop_deadline = :drop_deadline, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, semester); err != nil {
		return fmt.Errorf("update semester: %w", err)
	}
	return nil
}

// SetActive marks the provided semester as active and deactivates the rest in
// one transaction, so there is never a window with two active semesters.
func (r *SemesterRepository) SetActive(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set active tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `UPDATE semesters SET active = FALSE, updated_at = $1 WHERE active = TRUE AND id <> $2`, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("deactivate other semesters: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `UPDATE semesters SET active = TRUE, updated_at = $2 WHERE id = $1`, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("activate semester: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit set active tx: %w", err)
	}
	return nil
}

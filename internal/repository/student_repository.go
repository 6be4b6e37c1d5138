package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/campushq/registrar-api/internal/models"
)

// StudentRepository is the catalog store for student lookups. Students are
// user accounts; the role column distinguishes them.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID returns the student view of a user account.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	const query = `SELECT id, email, full_name, role, active FROM users WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

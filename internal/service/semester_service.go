package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campushq/registrar-api/internal/models"
	appErrors "github.com/campushq/registrar-api/pkg/errors"
)

type semesterRepository interface {
	List(ctx context.Context) ([]models.Semester, error)
	FindByID(ctx context.Context, id string) (*models.Semester, error)
	FindActive(ctx context.Context) (*models.Semester, error)
	ExistsByCode(ctx context.Context, code, excludeID string) (bool, error)
	Create(ctx context.Context, semester *models.Semester) error
	Update(ctx context.Context, semester *models.Semester) error
	SetActive(ctx context.Context, id string) error
}

// SemesterRequest creates or replaces a semester.
type SemesterRequest struct {
	Code             string     `json:"code" validate:"required,min=2,max=20"`
	Name             string     `json:"name" validate:"required,min=3,max=100"`
	RegistrationOpen bool       `json:"registration_open"`
	EnrollmentStart  time.Time  `json:"enrollment_start" validate:"required"`
	EnrollmentEnd    time.Time  `json:"enrollment_end" validate:"required"`
	DropDeadline     *time.Time `json:"drop_deadline,omitempty"`
}

// SemesterService manages academic terms. At most one semester is active at a
// time; Activate swaps the flag atomically.
type SemesterService struct {
	semesters semesterRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSemesterService constructs SemesterService.
func NewSemesterService(semesters semesterRepository, validate *validator.Validate, logger *zap.Logger) *SemesterService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SemesterService{semesters: semesters, validator: validate, logger: logger}
}

// List returns all semesters, newest first.
func (s *SemesterService) List(ctx context.Context) ([]models.Semester, error) {
	semesters, err := s.semesters.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list semesters")
	}
	return semesters, nil
}

// Get returns a single semester.
func (s *SemesterService) Get(ctx context.Context, id string) (*models.Semester, error) {
	semester, err := s.semesters.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrSemesterNotFound, fmt.Sprintf("semester %s not found", id))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load semester")
	}
	return semester, nil
}

// GetActive returns the currently active semester, if any.
func (s *SemesterService) GetActive(ctx context.Context) (*models.Semester, error) {
	semester, err := s.semesters.FindActive(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrSemesterNotFound, "no active semester")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active semester")
	}
	return semester, nil
}

// Create adds a semester. New semesters always start inactive.
func (s *SemesterService) Create(ctx context.Context, req SemesterRequest) (*models.Semester, error) {
	semester, err := s.buildSemester(ctx, "", req)
	if err != nil {
		return nil, err
	}
	if err := s.semesters.Create(ctx, semester); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create semester")
	}
	return s.Get(ctx, semester.ID)
}

// Update replaces a semester's fields. The active flag is only changed
// through Activate.
func (s *SemesterService) Update(ctx context.Context, id string, req SemesterRequest) (*models.Semester, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	semester, err := s.buildSemester(ctx, id, req)
	if err != nil {
		return nil, err
	}
	semester.ID = existing.ID
	semester.Active = existing.Active
	semester.CreatedAt = existing.CreatedAt

	if err := s.semesters.Update(ctx, semester); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update semester")
	}
	return s.Get(ctx, id)
}

// Activate makes the given semester the single active one. Deactivating the
// previous semester and activating this one commit together.
func (s *SemesterService) Activate(ctx context.Context, id string) (*models.Semester, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := s.semesters.SetActive(ctx, id); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to activate semester")
	}
	s.logger.Info("semester activated", zap.String("semester_id", id))
	return s.Get(ctx, id)
}

func (s *SemesterService) buildSemester(ctx context.Context, id string, req SemesterRequest) (*models.Semester, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid semester payload")
	}
	if !req.EnrollmentEnd.After(req.EnrollmentStart) {
		return nil, appErrors.New(appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "enrollment_end must be after enrollment_start")
	}

	taken, err := s.semesters.ExistsByCode(ctx, req.Code, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check semester code")
	}
	if taken {
		return nil, appErrors.New(appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, fmt.Sprintf("semester code %s already exists", req.Code))
	}

	return &models.Semester{
		ID:               id,
		Code:             req.Code,
		Name:             req.Name,
		RegistrationOpen: req.RegistrationOpen,
		EnrollmentStart:  req.EnrollmentStart,
		EnrollmentEnd:    req.EnrollmentEnd,
		DropDeadline:     req.DropDeadline,
	}, nil
}

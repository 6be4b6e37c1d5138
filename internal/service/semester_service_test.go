package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campushq/registrar-api/internal/models"
	appErrors "github.com/campushq/registrar-api/pkg/errors"
)

type mockSemesterRepo struct {
	semesters map[string]*models.Semester
}

func newMockSemesterRepo() *mockSemesterRepo {
	return &mockSemesterRepo{semesters: make(map[string]*models.Semester)}
}

func (m *mockSemesterRepo) List(ctx context.Context) ([]models.Semester, error) {
	var list []models.Semester
	for _, s := range m.semesters {
		list = append(list, *s)
	}
	return list, nil
}

func (m *mockSemesterRepo) FindByID(ctx context.Context, id string) (*models.Semester, error) {
	if s, ok := m.semesters[id]; ok {
		clone := *s
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSemesterRepo) FindActive(ctx context.Context) (*models.Semester, error) {
	for _, s := range m.semesters {
		if s.Active {
			clone := *s
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockSemesterRepo) ExistsByCode(ctx context.Context, code, excludeID string) (bool, error) {
	for _, s := range m.semesters {
		if s.Code == code && s.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockSemesterRepo) Create(ctx context.Context, semester *models.Semester) error {
	if semester.ID == "" {
		semester.ID = "sem-new"
	}
	clone := *semester
	m.semesters[semester.ID] = &clone
	return nil
}

func (m *mockSemesterRepo) Update(ctx context.Context, semester *models.Semester) error {
	clone := *semester
	m.semesters[semester.ID] = &clone
	return nil
}

func (m *mockSemesterRepo) SetActive(ctx context.Context, id string) error {
	if _, ok := m.semesters[id]; !ok {
		return sql.ErrNoRows
	}
	for _, s := range m.semesters {
		s.Active = s.ID == id
	}
	return nil
}

func validSemesterRequest() SemesterRequest {
	start := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)
	return SemesterRequest{
		Code:             "2026-FALL",
		Name:             "Fall 2026",
		RegistrationOpen: true,
		EnrollmentStart:  start,
		EnrollmentEnd:    start.AddDate(0, 0, 14),
	}
}

func TestSemesterCreate(t *testing.T) {
	repo := newMockSemesterRepo()
	svc := NewSemesterService(repo, nil, zap.NewNop())

	semester, err := svc.Create(context.Background(), validSemesterRequest())
	require.NoError(t, err)
	assert.Equal(t, "2026-FALL", semester.Code)
	assert.False(t, semester.Active, "new semesters start inactive")
}

func TestSemesterCreateRejectsInvertedWindow(t *testing.T) {
	svc := NewSemesterService(newMockSemesterRepo(), nil, zap.NewNop())

	req := validSemesterRequest()
	req.EnrollmentEnd = req.EnrollmentStart.Add(-time.Hour)

	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestSemesterCreateRejectsDuplicateCode(t *testing.T) {
	repo := newMockSemesterRepo()
	repo.semesters["sem-1"] = &models.Semester{ID: "sem-1", Code: "2026-FALL"}
	svc := NewSemesterService(repo, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), validSemesterRequest())
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestSemesterUpdateKeepsActiveFlag(t *testing.T) {
	repo := newMockSemesterRepo()
	created := time.Now().UTC().Add(-30 * 24 * time.Hour)
	repo.semesters["sem-1"] = &models.Semester{
		ID: "sem-1", Code: "2026-FALL", Name: "Fall 2026", Active: true, CreatedAt: created,
	}
	svc := NewSemesterService(repo, nil, zap.NewNop())

	req := validSemesterRequest()
	req.Name = "Fall Term 2026"
	req.RegistrationOpen = false

	updated, err := svc.Update(context.Background(), "sem-1", req)
	require.NoError(t, err)
	assert.Equal(t, "Fall Term 2026", updated.Name)
	assert.False(t, updated.RegistrationOpen)
	assert.True(t, updated.Active, "the active flag only changes through Activate")
	assert.Equal(t, created, updated.CreatedAt)
}

func TestSemesterActivateSwapsSingleActive(t *testing.T) {
	repo := newMockSemesterRepo()
	repo.semesters["sem-1"] = &models.Semester{ID: "sem-1", Code: "2026-SPRING", Active: true}
	repo.semesters["sem-2"] = &models.Semester{ID: "sem-2", Code: "2026-FALL"}
	svc := NewSemesterService(repo, nil, zap.NewNop())

	activated, err := svc.Activate(context.Background(), "sem-2")
	require.NoError(t, err)
	assert.True(t, activated.Active)

	active := 0
	for _, s := range repo.semesters {
		if s.Active {
			active++
			assert.Equal(t, "sem-2", s.ID)
		}
	}
	assert.Equal(t, 1, active)
}

func TestSemesterActivateUnknown(t *testing.T) {
	svc := NewSemesterService(newMockSemesterRepo(), nil, zap.NewNop())

	_, err := svc.Activate(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrSemesterNotFound))
}

func TestSemesterGetActive(t *testing.T) {
	repo := newMockSemesterRepo()
	svc := NewSemesterService(repo, nil, zap.NewNop())

	_, err := svc.GetActive(context.Background())
	assert.True(t, appErrors.Is(err, appErrors.ErrSemesterNotFound))

	repo.semesters["sem-1"] = &models.Semester{ID: "sem-1", Code: "2026-FALL", Active: true}
	active, err := svc.GetActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sem-1", active.ID)
}

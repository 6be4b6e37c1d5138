package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/campushq/registrar-api/internal/models"
	appErrors "github.com/campushq/registrar-api/pkg/errors"
)

type mockAuthRepo struct {
	user             *models.User
	lastLoginUpdated bool
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.user == nil || m.user.Email != email {
		return nil, sql.ErrNoRows
	}
	return m.user, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.user == nil || m.user.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.user, nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func testAuthService(repo *mockAuthRepo) *AuthService {
	return NewAuthService(repo, nil, zap.NewNop(), AuthConfig{
		Secret:     "test-secret",
		Expiration: time.Hour,
		Issuer:     "registrar-api",
	})
}

func testUser(t *testing.T, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.User{
		ID:           "user-1",
		Email:        "ada@example.edu",
		FullName:     "Ada Lovelace",
		PasswordHash: string(hash),
		Role:         models.RoleStudent,
		Active:       true,
	}
}

func TestAuthLoginIssuesToken(t *testing.T) {
	repo := &mockAuthRepo{user: testUser(t, "s3cret")}
	svc := testAuthService(repo)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "ada@example.edu", Password: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.True(t, repo.lastLoginUpdated)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestAuthLoginWrongPassword(t *testing.T) {
	svc := testAuthService(&mockAuthRepo{user: testUser(t, "s3cret")})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ada@example.edu", Password: "nope"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestAuthLoginUnknownEmail(t *testing.T) {
	svc := testAuthService(&mockAuthRepo{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ghost@example.edu", Password: "s3cret"})
	require.Error(t, err)
	// Unknown emails and bad passwords look identical to the caller.
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestAuthLoginInactiveAccount(t *testing.T) {
	user := testUser(t, "s3cret")
	user.Active = false
	svc := testAuthService(&mockAuthRepo{user: user})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ada@example.edu", Password: "s3cret"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInactiveAccount))
}

func TestAuthValidateTokenRejectsForgery(t *testing.T) {
	repo := &mockAuthRepo{user: testUser(t, "s3cret")}
	svc := testAuthService(repo)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "ada@example.edu", Password: "s3cret"})
	require.NoError(t, err)

	other := NewAuthService(repo, nil, zap.NewNop(), AuthConfig{Secret: "different-secret", Expiration: time.Hour})
	_, err = other.ValidateToken(resp.AccessToken)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

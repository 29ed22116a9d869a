package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	pkgAuth "github.com/innocapforge/forge-backend/pkg/auth"
	"github.com/innocapforge/forge-backend/pkg/auth/session"
	"github.com/innocapforge/forge-backend/pkg/config"
	"github.com/innocapforge/forge-backend/pkg/db/models"
	"github.com/innocapforge/forge-backend/pkg/enums"
	pkgerrors "github.com/innocapforge/forge-backend/pkg/errors"
	"github.com/innocapforge/forge-backend/pkg/security"
)

var testJWT = config.JWTConfig{
	Secret:            "secret",
	Issuer:            "innocap-forge",
	ExpirationMinutes: 30,
}

func TestServiceLoginMintsTokenWithRole(t *testing.T) {
	user := testUser(t, "investor-pass", enums.UserRoleInvestor)
	svc, sessions := buildTestService(t, user)

	resp, err := svc.Login(context.Background(), LoginRequest{Email: " INVESTOR@forge.test ", Password: "investor-pass"})
	require.NoError(t, err)

	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, enums.UserRoleInvestor, claims.Role)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "refresh-token", resp.RefreshToken)
	assert.Equal(t, claims.ID, sessions.generatedFor)
	require.NotNil(t, resp.User.LastLoginAt)
}

func TestServiceLoginRejectsBadCredentials(t *testing.T) {
	user := testUser(t, "correct-pass", enums.UserRoleInnovator)
	svc, _ := buildTestService(t, user)

	_, err := svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: "wrong-pass"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	_, err = svc.Login(context.Background(), LoginRequest{Email: "nobody@forge.test", Password: "correct-pass"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	user.IsActive = false
	_, err = svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: "correct-pass"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestServiceRefreshRotatesSession(t *testing.T) {
	user := testUser(t, "pass-word", enums.UserRoleInnovator)
	svc, sessions := buildTestService(t, user)

	expired, err := pkgAuth.MintAccessToken(testJWT, time.Now().Add(-2*time.Hour), pkgAuth.AccessTokenPayload{
		UserID: user.ID, Role: user.Role, JTI: "old-jti",
	})
	require.NoError(t, err)

	resp, err := svc.Refresh(context.Background(), expired, "refresh-token")
	require.NoError(t, err)
	assert.Equal(t, "old-jti", sessions.rotatedFrom)
	assert.Equal(t, "rotated-refresh", resp.RefreshToken)

	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "new-jti", claims.ID)
}

func TestServiceRefreshInvalidToken(t *testing.T) {
	user := testUser(t, "pass-word", enums.UserRoleInnovator)
	svc, sessions := buildTestService(t, user)
	sessions.rotateErr = session.ErrInvalidRefreshToken

	token, err := pkgAuth.MintAccessToken(testJWT, time.Now(), pkgAuth.AccessTokenPayload{UserID: user.ID, Role: user.Role})
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), token, "stale")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	_, err = svc.Refresh(context.Background(), "not-a-jwt", "stale")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestServiceLogout(t *testing.T) {
	user := testUser(t, "pass-word", enums.UserRoleInnovator)
	svc, sessions := buildTestService(t, user)

	require.NoError(t, svc.Logout(context.Background(), "jti-1"))
	assert.Equal(t, "jti-1", sessions.revoked)

	assert.True(t, pkgerrors.IsCode(svc.Logout(context.Background(), " "), pkgerrors.CodeUnauthorized))

	sessions.revokeErr = errors.New("redis down")
	assert.True(t, pkgerrors.IsCode(svc.Logout(context.Background(), "jti-2"), pkgerrors.CodeDependency))
}

func buildTestService(t *testing.T, user *models.User) (Service, *stubSessionManager) {
	t.Helper()
	sessions := &stubSessionManager{refreshToken: "refresh-token"}
	svc, err := NewService(ServiceParams{
		UserRepo:       &stubUserRepo{user: user},
		SessionManager: sessions,
		JWTConfig:      testJWT,
	})
	require.NoError(t, err)
	return svc, sessions
}

func testUser(t *testing.T, password string, role enums.UserRole) *models.User {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{})
	require.NoError(t, err)
	return &models.User{
		ID:           uuid.New(),
		Email:        string(role) + "@forge.test",
		PasswordHash: hash,
		Name:         "Test " + string(role),
		Role:         role,
		IsActive:     true,
	}
}

type stubUserRepo struct {
	user *models.User
}

func (s *stubUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func (s *stubUserRepo) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func (s *stubUserRepo) UpdateLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	if s.user != nil && s.user.ID == id {
		s.user.LastLoginAt = &at
	}
	return nil
}

type stubSessionManager struct {
	refreshToken string
	generatedFor string
	rotatedFrom  string
	revoked      string
	rotateErr    error
	revokeErr    error
}

func (s *stubSessionManager) Generate(_ context.Context, accessID string) (string, error) {
	s.generatedFor = accessID
	return s.refreshToken, nil
}

func (s *stubSessionManager) Rotate(_ context.Context, oldAccessID, provided string) (string, string, error) {
	if s.rotateErr != nil {
		return "", "", s.rotateErr
	}
	s.rotatedFrom = oldAccessID
	return "new-jti", "rotated-refresh", nil
}

func (s *stubSessionManager) Revoke(_ context.Context, accessID string) error {
	s.revoked = accessID
	return s.revokeErr
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/accademia-musici/academy-api/internal/models"
	appErrors "github.com/accademia-musici/academy-api/pkg/errors"
)

type mockAuthUsers struct {
	byEmail map[string]*models.User
	byID    map[string]*models.User
}

func (m *mockAuthUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if user, ok := m.byEmail[email]; ok {
		cp := *user
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.byID[id]; ok {
		cp := *user
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthUsers) UpdateLastAccess(ctx context.Context, id string, ts time.Time) error {
	return nil
}

func (m *mockAuthUsers) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if user, ok := m.byID[id]; ok {
		user.PasswordHash = passwordHash
	}
	return nil
}

type mockSessions struct {
	byToken     map[string]*models.Session
	deleted     []string
	userRevoked []string
}

func (m *mockSessions) Create(ctx context.Context, session *models.Session) error {
	if m.byToken == nil {
		m.byToken = make(map[string]*models.Session)
	}
	cp := *session
	m.byToken[session.Token] = &cp
	return nil
}

func (m *mockSessions) FindByToken(ctx context.Context, token string) (*models.Session, error) {
	if session, ok := m.byToken[token]; ok {
		cp := *session
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSessions) DeleteByToken(ctx context.Context, token string) error {
	if _, ok := m.byToken[token]; !ok {
		return sql.ErrNoRows
	}
	delete(m.byToken, token)
	m.deleted = append(m.deleted, token)
	return nil
}

func (m *mockSessions) DeleteByUser(ctx context.Context, userID string) error {
	m.userRevoked = append(m.userRevoked, userID)
	for token, session := range m.byToken {
		if session.UserID == userID {
			delete(m.byToken, token)
		}
	}
	return nil
}

type mockAdminAccess struct {
	byUser   map[string]*models.AdminAccess
	recorded []string
}

func (m *mockAdminAccess) FindByUser(ctx context.Context, userID string) (*models.AdminAccess, error) {
	if access, ok := m.byUser[userID]; ok {
		cp := *access
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAdminAccess) RecordGoogleVerification(ctx context.Context, userID, googleID string, ts time.Time) error {
	m.recorded = append(m.recorded, userID)
	return nil
}

type mockGoogleVerifier struct {
	email   string
	subject string
	err     error
}

func (m *mockGoogleVerifier) Verify(idToken string) (string, string, error) {
	if m.err != nil {
		return "", "", m.err
	}
	return m.email, m.subject, nil
}

func hashOf(t *testing.T, value string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(value), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func authConfig() AuthConfig {
	return AuthConfig{SessionSecret: "test-secret", SessionTTL: time.Hour, PinStepTTL: 5 * time.Minute}
}

func newAuthFixture(t *testing.T) (*AuthService, *mockAuthUsers, *mockSessions, *mockAdminAccess, *mockGoogleVerifier) {
	t.Helper()
	student := &models.User{ID: "s1", Role: models.RoleStudent, Email: "anna@example.com", PasswordHash: hashOf(t, "secret-pass"), Active: true}
	admin := &models.User{ID: "a1", Role: models.RoleAdmin, Email: "admin@example.com", PasswordHash: hashOf(t, "admin-pass"), Active: true}
	users := &mockAuthUsers{
		byEmail: map[string]*models.User{student.Email: student, admin.Email: admin},
		byID:    map[string]*models.User{student.ID: student, admin.ID: admin},
	}
	sessions := &mockSessions{}
	admins := &mockAdminAccess{byUser: map[string]*models.AdminAccess{
		"a1": {ID: "aa1", UserID: "a1", PinHash: hashOf(t, "1234"), PinActive: true},
	}}
	google := &mockGoogleVerifier{email: "admin@example.com", subject: "google-sub"}
	svc := NewAuthService(users, sessions, admins, google, nil, zap.NewNop(), authConfig())
	return svc, users, sessions, admins, google
}

func TestAuthLoginIssuesSession(t *testing.T) {
	svc, _, sessions, _, _ := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "anna@example.com", Password: "secret-pass"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "s1", resp.User.ID)
	assert.Len(t, sessions.byToken, 1)
}

func TestAuthLoginRejectsAdminAccounts(t *testing.T) {
	svc, _, _, _, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@example.com", Password: "admin-pass"})
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, apiErr.Code)
}

func TestAuthLoginWrongPassword(t *testing.T) {
	svc, _, _, _, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "anna@example.com", Password: "wrong"})
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, apiErr.Code)
}

func TestAuthAdminTwoStepFlow(t *testing.T) {
	svc, _, sessions, admins, _ := newAuthFixture(t)

	pinResp, err := svc.AdminPin(context.Background(), models.AdminPinRequest{Email: "admin@example.com", Pin: "1234"})
	require.NoError(t, err)
	assert.NotEmpty(t, pinResp.TempToken)
	assert.Equal(t, "a1", pinResp.UserID)

	loginResp, err := svc.AdminGoogle(context.Background(), models.AdminGoogleRequest{
		Email:     "admin@example.com",
		TempToken: pinResp.TempToken,
		IDToken:   "google-id-token",
	})
	require.NoError(t, err)
	assert.Equal(t, "a1", loginResp.User.ID)
	assert.Len(t, sessions.byToken, 1)
	assert.Contains(t, admins.recorded, "a1")
}

func TestAuthAdminGoogleEmailMismatch(t *testing.T) {
	svc, _, _, _, google := newAuthFixture(t)
	google.email = "someone-else@example.com"

	pinResp, err := svc.AdminPin(context.Background(), models.AdminPinRequest{Email: "admin@example.com", Pin: "1234"})
	require.NoError(t, err)

	_, err = svc.AdminGoogle(context.Background(), models.AdminGoogleRequest{
		Email:     "admin@example.com",
		TempToken: pinResp.TempToken,
		IDToken:   "google-id-token",
	})
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrUpstreamAuth.Code, apiErr.Code)
}

func TestAuthAdminGoogleVerifierFailure(t *testing.T) {
	svc, _, _, _, google := newAuthFixture(t)
	google.err = errors.New("upstream timeout")

	pinResp, err := svc.AdminPin(context.Background(), models.AdminPinRequest{Email: "admin@example.com", Pin: "1234"})
	require.NoError(t, err)

	_, err = svc.AdminGoogle(context.Background(), models.AdminGoogleRequest{
		Email:     "admin@example.com",
		TempToken: pinResp.TempToken,
		IDToken:   "google-id-token",
	})
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrUpstreamAuth.Code, apiErr.Code)
}

func TestAuthAdminGoogleRejectsSessionToken(t *testing.T) {
	svc, _, _, _, _ := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "anna@example.com", Password: "secret-pass"})
	require.NoError(t, err)

	_, err = svc.AdminGoogle(context.Background(), models.AdminGoogleRequest{
		Email:     "admin@example.com",
		TempToken: resp.Token,
		IDToken:   "google-id-token",
	})
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, apiErr.Code)
}

func TestAuthAdminPinWrongPin(t *testing.T) {
	svc, _, _, _, _ := newAuthFixture(t)

	_, err := svc.AdminPin(context.Background(), models.AdminPinRequest{Email: "admin@example.com", Pin: "9999"})
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, apiErr.Code)
}

func TestAuthResolveSessionExpired(t *testing.T) {
	svc, _, sessions, _, _ := newAuthFixture(t)

	sessions.byToken = map[string]*models.Session{
		"stale": {ID: "sess-1", UserID: "s1", Token: "stale", ExpiresAt: time.Now().UTC().Add(-time.Minute)},
	}

	_, err := svc.ResolveSession(context.Background(), "stale")
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, apiErr.Code)
	assert.NotContains(t, sessions.deleted, "stale")
	assert.Contains(t, sessions.byToken, "stale")
}

func TestAuthResolveSessionInactiveUser(t *testing.T) {
	svc, users, sessions, _, _ := newAuthFixture(t)

	users.byID["s1"].Active = false
	sessions.byToken = map[string]*models.Session{
		"live": {ID: "sess-1", UserID: "s1", Token: "live", ExpiresAt: time.Now().UTC().Add(time.Hour)},
	}

	_, err := svc.ResolveSession(context.Background(), "live")
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, apiErr.Code)
}

func TestAuthLogoutUnknownTokenIsNoop(t *testing.T) {
	svc, _, _, _, _ := newAuthFixture(t)

	assert.NoError(t, svc.Logout(context.Background(), "unknown"))
}

func TestAuthChangePasswordRevokesSessions(t *testing.T) {
	svc, users, sessions, _, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "anna@example.com", Password: "secret-pass"})
	require.NoError(t, err)
	require.Len(t, sessions.byToken, 1)

	err = svc.ChangePassword(context.Background(), "s1", models.ChangePasswordRequest{OldPassword: "secret-pass", NewPassword: "longer-new-pass"})
	require.NoError(t, err)
	assert.Empty(t, sessions.byToken)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(users.byID["s1"].PasswordHash), []byte("longer-new-pass")))
}

func TestAuthChangePasswordWrongOld(t *testing.T) {
	svc, _, _, _, _ := newAuthFixture(t)

	err := svc.ChangePassword(context.Background(), "s1", models.ChangePasswordRequest{OldPassword: "wrong", NewPassword: "longer-new-pass"})
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, apiErr.Code)
}

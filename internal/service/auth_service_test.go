package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storegate/internal/auth"
	"storegate/internal/model"
	"storegate/internal/queue"
)

func register(t *testing.T, svc *AuthService, email, username, password string) *AuthResult {
	t.Helper()
	res, err := svc.Register(context.Background(), RegisterInput{
		Email:    email,
		Username: username,
		Password: password,
	})
	require.NoError(t, err)
	return res
}

func TestRegisterAssignsDefaultRole(t *testing.T) {
	svc, st, _ := newTestService(AuthConfig{}, nil)

	res := register(t, svc, "Anna@Example.com", "anna", "s3cret!pass")

	assert.Equal(t, "anna@example.com", res.Email)
	assert.Equal(t, []string{DefaultRole}, res.Roles)
	assert.NotEmpty(t, res.AccessToken)
	assert.Len(t, res.RefreshToken, 88)

	u, err := st.GetByEmail(context.Background(), "anna@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.ProviderLocal, u.Provider)
	require.NotNil(t, u.PasswordHash)
	assert.True(t, auth.VerifyPassword(*u.PasswordHash, "s3cret!pass"))

	assert.Contains(t, st.eventTypes(), queue.EventUserRegistered)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	svc, _, _ := newTestService(AuthConfig{}, nil)
	register(t, svc, "anna@example.com", "anna", "s3cret!pass")

	_, err := svc.Register(context.Background(), RegisterInput{
		Email: "anna@example.com", Username: "other", Password: "pw123456",
	})
	assert.ErrorIs(t, err, auth.ErrEmailExists)

	_, err = svc.Register(context.Background(), RegisterInput{
		Email: "b@example.com", Username: "anna", Password: "pw123456",
	})
	assert.ErrorIs(t, err, auth.ErrUsernameTaken)
}

func TestLoginUniformFailures(t *testing.T) {
	svc, _, _ := newTestService(AuthConfig{}, nil)
	register(t, svc, "anna@example.com", "anna", "s3cret!pass")

	_, err := svc.Login(context.Background(), "nobody@example.com", "whatever")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), "anna@example.com", "wrong-password")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestLoginLockoutAfterThreshold(t *testing.T) {
	svc, st, now := newTestService(AuthConfig{LockoutThreshold: 5, LockoutWindow: 15 * time.Minute}, nil)
	register(t, svc, "anna@example.com", "anna", "s3cret!pass")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Login(ctx, "anna@example.com", "wrong-password")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	}

	// Even the correct password is rejected inside the window.
	_, err := svc.Login(ctx, "anna@example.com", "s3cret!pass")
	assert.ErrorIs(t, err, auth.ErrAccountLocked)
	assert.Contains(t, st.eventTypes(), queue.EventAccountLocked)

	// Window expires; the correct password works and resets the counter.
	*now = now.Add(16 * time.Minute)
	res, err := svc.Login(ctx, "anna@example.com", "s3cret!pass")
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)

	u, err := st.GetByEmail(ctx, "anna@example.com")
	require.NoError(t, err)
	assert.Equal(t, 0, u.AccessFailedCount)
	assert.Nil(t, u.LockoutEnd)
}

func TestLoginFailureResetOnSuccess(t *testing.T) {
	svc, st, _ := newTestService(AuthConfig{}, nil)
	register(t, svc, "anna@example.com", "anna", "s3cret!pass")
	ctx := context.Background()

	_, _ = svc.Login(ctx, "anna@example.com", "wrong")
	_, _ = svc.Login(ctx, "anna@example.com", "wrong")

	u, err := st.GetByEmail(ctx, "anna@example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, u.AccessFailedCount)

	_, err = svc.Login(ctx, "anna@example.com", "s3cret!pass")
	require.NoError(t, err)

	u, err = st.GetByEmail(ctx, "anna@example.com")
	require.NoError(t, err)
	assert.Equal(t, 0, u.AccessFailedCount)
}

func TestRefreshRotatesSingleUse(t *testing.T) {
	svc, _, _ := newTestService(AuthConfig{}, nil)
	res := register(t, svc, "anna@example.com", "anna", "s3cret!pass")
	ctx := context.Background()

	rotated, err := svc.Refresh(ctx, res.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, res.RefreshToken, rotated.RefreshToken)
	assert.Equal(t, res.UserID, rotated.UserID)

	// The consumed token is dead.
	_, err = svc.Refresh(ctx, res.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	// The replacement still works.
	_, err = svc.Refresh(ctx, rotated.RefreshToken)
	require.NoError(t, err)
}

func TestRefreshReuseRevokesAllSessions(t *testing.T) {
	svc, st, _ := newTestService(AuthConfig{}, nil)
	res := register(t, svc, "anna@example.com", "anna", "s3cret!pass")
	ctx := context.Background()

	second, err := svc.Login(ctx, "anna@example.com", "s3cret!pass")
	require.NoError(t, err)

	rotated, err := svc.Refresh(ctx, res.RefreshToken)
	require.NoError(t, err)

	// Replaying the consumed token kills every remaining session.
	_, err = svc.Refresh(ctx, res.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
	assert.Contains(t, st.eventTypes(), queue.EventTokenReuse)

	_, err = svc.Refresh(ctx, rotated.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
	_, err = svc.Refresh(ctx, second.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestRefreshExpired(t *testing.T) {
	svc, _, now := newTestService(AuthConfig{}, nil)
	res := register(t, svc, "anna@example.com", "anna", "s3cret!pass")

	*now = now.Add(8 * 24 * time.Hour)
	_, err := svc.Refresh(context.Background(), res.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
}

func TestRefreshUnknownToken(t *testing.T) {
	svc, _, _ := newTestService(AuthConfig{}, nil)
	_, err := svc.Refresh(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestLogoutIsIdempotent(t *testing.T) {
	svc, _, _ := newTestService(AuthConfig{}, nil)
	res := register(t, svc, "anna@example.com", "anna", "s3cret!pass")
	ctx := context.Background()

	require.NoError(t, svc.Logout(ctx, res.RefreshToken))
	require.NoError(t, svc.Logout(ctx, res.RefreshToken))
	require.NoError(t, svc.Logout(ctx, "unknown-token"))

	_, err := svc.Refresh(ctx, res.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestLogoutAllDevicesCounts(t *testing.T) {
	svc, _, _ := newTestService(AuthConfig{}, nil)
	res := register(t, svc, "anna@example.com", "anna", "s3cret!pass")
	ctx := context.Background()

	_, err := svc.Login(ctx, "anna@example.com", "s3cret!pass")
	require.NoError(t, err)

	n, err := svc.LogoutAllDevices(ctx, res.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = svc.LogoutAllDevices(ctx, res.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestSSOLoginProvisionsNewAccount(t *testing.T) {
	verifier := &fakeVerifier{identity: Identity{Email: "New@Example.com", FirstName: "New", LastName: "User"}}
	svc, st, _ := newTestService(AuthConfig{}, verifier)
	ctx := context.Background()

	res, err := svc.SSOLogin(ctx, model.ProviderGoogle, "sso-token")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", res.Email)
	assert.Equal(t, []string{DefaultRole}, res.Roles)

	u, err := st.GetByEmail(ctx, "new@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.ProviderGoogle, u.Provider)
	assert.True(t, u.EmailConfirmed)
	assert.Nil(t, u.PasswordHash)
	assert.Equal(t, "new", u.Username)
}

func TestSSOLoginExistingAccount(t *testing.T) {
	verifier := &fakeVerifier{identity: Identity{Email: "anna@example.com"}}
	svc, _, _ := newTestService(AuthConfig{}, verifier)
	res := register(t, svc, "anna@example.com", "anna", "s3cret!pass")

	sso, err := svc.SSOLogin(context.Background(), model.ProviderGoogle, "sso-token")
	require.NoError(t, err)
	assert.Equal(t, res.UserID, sso.UserID)
}

func TestSSOLoginVerifierFailure(t *testing.T) {
	svc, _, _ := newTestService(AuthConfig{}, &fakeVerifier{fail: true})
	_, err := svc.SSOLogin(context.Background(), model.ProviderGoogle, "bad-token")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestChangePasswordVerifiesCurrent(t *testing.T) {
	svc, st, _ := newTestService(AuthConfig{}, nil)
	res := register(t, svc, "anna@example.com", "anna", "s3cret!pass")
	ctx := context.Background()

	err := svc.ChangePassword(ctx, res.UserID, "wrong-current", "brand-new-pass")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	require.NoError(t, svc.ChangePassword(ctx, res.UserID, "s3cret!pass", "brand-new-pass"))

	u, err := st.GetByEmail(ctx, "anna@example.com")
	require.NoError(t, err)
	assert.True(t, auth.VerifyPassword(*u.PasswordHash, "brand-new-pass"))
}

func TestUpdateUserOwnershipAndAdmin(t *testing.T) {
	svc, st, _ := newTestService(AuthConfig{}, nil)
	anna := register(t, svc, "anna@example.com", "anna", "s3cret!pass")
	bella := register(t, svc, "bella@example.com", "bella", "s3cret!pass")
	ctx := context.Background()

	newName := "Annette"
	// A plain user cannot touch someone else's profile.
	err := svc.UpdateUser(ctx, anna.UserID, bella.UserID, UpdateUserInput{FirstName: &newName})
	assert.ErrorIs(t, err, auth.ErrAccessDenied)

	// Self update works.
	require.NoError(t, svc.UpdateUser(ctx, anna.UserID, anna.UserID, UpdateUserInput{FirstName: &newName}))

	// An admin can update anyone, including the password without the current one.
	st.grantRole(anna.UserID, AdminRole)
	newPass := "admin-set-pass"
	require.NoError(t, svc.UpdateUser(ctx, anna.UserID, bella.UserID, UpdateUserInput{NewPassword: &newPass}))

	u, err := st.GetByEmail(ctx, "bella@example.com")
	require.NoError(t, err)
	assert.True(t, auth.VerifyPassword(*u.PasswordHash, newPass))
}

func TestUpdateUserEmailChangeResetsConfirmation(t *testing.T) {
	svc, st, _ := newTestService(AuthConfig{}, nil)
	res := register(t, svc, "anna@example.com", "anna", "s3cret!pass")
	ctx := context.Background()

	// Confirm the address first, then change it.
	u, err := st.GetByEmail(ctx, "anna@example.com")
	require.NoError(t, err)
	u.EmailConfirmed = true
	require.NoError(t, st.Update(ctx, u))

	newEmail := "Anna.New@Example.com"
	require.NoError(t, svc.UpdateUser(ctx, res.UserID, res.UserID, UpdateUserInput{Email: &newEmail}))

	u, err = st.GetByEmail(ctx, "anna.new@example.com")
	require.NoError(t, err)
	assert.False(t, u.EmailConfirmed)
}

func TestLoginRequiresConfirmedEmailWhenConfigured(t *testing.T) {
	svc, st, _ := newTestService(AuthConfig{RequireConfirmedEmail: true}, nil)
	register(t, svc, "anna@example.com", "anna", "s3cret!pass")
	ctx := context.Background()

	_, err := svc.Login(ctx, "anna@example.com", "s3cret!pass")
	assert.ErrorIs(t, err, auth.ErrEmailNotConfirmed)

	u, err := st.GetByEmail(ctx, "anna@example.com")
	require.NoError(t, err)
	u.EmailConfirmed = true
	require.NoError(t, st.Update(ctx, u))

	_, err = svc.Login(ctx, "anna@example.com", "s3cret!pass")
	require.NoError(t, err)
}

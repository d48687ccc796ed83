package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"assessly-backend/internal/models"
	"assessly-backend/internal/store"
)

type testClock struct {
	current time.Time
}

func (c *testClock) now() time.Time {
	return c.current
}

func (c *testClock) advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func newTestService(t *testing.T) (*Service, *store.MemUserStore, *testClock) {
	t.Helper()
	users := store.NewMemUserStore()
	clock := &testClock{current: time.Now()}
	svc := &Service{
		Users:            users,
		Tokens:           store.NewMemRefreshTokenStore(),
		Denylist:         store.NewMemDenylistStore(),
		Secret:           testSecret,
		AccessTTL:        15 * time.Minute,
		RefreshTTL:       7 * 24 * time.Hour,
		MaxLoginAttempts: 5,
		LockoutWindow:    30 * time.Minute,
		BcryptCost:       bcrypt.MinCost,
		Now:              clock.now,
	}
	return svc, users, clock
}

func register(t *testing.T, svc *Service) (*models.User, *TokenPair) {
	t.Helper()
	user, pair, err := svc.Register(context.Background(), "Alice", "alice@example.com", "Passw0rd!", "", "127.0.0.1")
	require.NoError(t, err)
	return user, pair
}

func TestRegisterHashesPassword(t *testing.T) {
	svc, users, _ := newTestService(t)
	user, pair := register(t, svc)

	require.Equal(t, models.RoleCandidate, user.Role, "role defaults to candidate")
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	stored, err := users.FindByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	require.NotEqual(t, "Passw0rd!", stored.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("Passw0rd!")))
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, _, err := svc.Register(context.Background(), "", "alice@example.com", "Passw0rd!", "", "")
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)

	_, _, err = svc.Register(context.Background(), "Alice", "alice@example.com", "short", "", "")
	require.ErrorAs(t, err, &validationErr)

	_, _, err = svc.Register(context.Background(), "Alice", "alice@example.com", "Passw0rd!", "superuser", "")
	require.ErrorAs(t, err, &validationErr)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService(t)
	register(t, svc)

	_, _, err := svc.Register(context.Background(), "Alice Again", "alice@example.com", "Passw0rd!", "", "")
	var conflictErr *ConflictError
	require.ErrorAs(t, err, &conflictErr)
}

func TestLoginDoesNotDistinguishUnknownUserFromBadPassword(t *testing.T) {
	svc, _, _ := newTestService(t)
	register(t, svc)

	_, _, errUnknown := svc.Login(context.Background(), "nobody@example.com", "Passw0rd!", "")
	_, _, errWrong := svc.Login(context.Background(), "alice@example.com", "wrong-password", "")

	var authErrUnknown, authErrWrong *AuthError
	require.ErrorAs(t, errUnknown, &authErrUnknown)
	require.ErrorAs(t, errWrong, &authErrWrong)
	require.Equal(t, authErrUnknown.Kind, authErrWrong.Kind)
	require.Equal(t, authErrUnknown.Message, authErrWrong.Message)
}

func TestLockoutAfterRepeatedFailures(t *testing.T) {
	svc, _, clock := newTestService(t)
	register(t, svc)

	for i := 0; i < 5; i++ {
		_, _, err := svc.Login(context.Background(), "alice@example.com", "wrong-password", "")
		var authError *AuthError
		require.ErrorAs(t, err, &authError, "attempt %d", i+1)
	}

	// Correct password, but the window is active.
	_, _, err := svc.Login(context.Background(), "alice@example.com", "Passw0rd!", "")
	var lockedErr *AccountLockedError
	require.ErrorAs(t, err, &lockedErr)

	// Still locked just before the window closes.
	clock.advance(29 * time.Minute)
	_, _, err = svc.Login(context.Background(), "alice@example.com", "Passw0rd!", "")
	require.ErrorAs(t, err, &lockedErr)

	// Window elapsed: login succeeds and counters reset.
	clock.advance(2 * time.Minute)
	user, pair, err := svc.Login(context.Background(), "alice@example.com", "Passw0rd!", "")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.Zero(t, user.FailedLoginAttempts)
	require.Nil(t, user.LockUntil)
}

func TestRefreshRotatesToken(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, pair := register(t, svc)

	_, next, err := svc.Refresh(context.Background(), pair.RefreshToken, "")
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, next.RefreshToken)
	require.NotEqual(t, pair.AccessToken, next.AccessToken)
}

func TestRefreshReuseRevokesFamily(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, pair := register(t, svc)

	_, next, err := svc.Refresh(context.Background(), pair.RefreshToken, "")
	require.NoError(t, err)

	// Replaying the rotated-out token is a reuse signal.
	_, _, err = svc.Refresh(context.Background(), pair.RefreshToken, "")
	var authError *AuthError
	require.ErrorAs(t, err, &authError)
	require.Equal(t, KindTokenReused, authError.Kind)

	// The reuse burned the whole family, including the replacement.
	_, _, err = svc.Refresh(context.Background(), next.RefreshToken, "")
	require.ErrorAs(t, err, &authError)
	require.Equal(t, KindTokenReused, authError.Kind)
}

func TestRefreshExpiredToken(t *testing.T) {
	svc, _, clock := newTestService(t)
	_, pair := register(t, svc)

	clock.advance(8 * 24 * time.Hour)

	_, _, err := svc.Refresh(context.Background(), pair.RefreshToken, "")
	var authError *AuthError
	require.ErrorAs(t, err, &authError)
	require.Equal(t, KindTokenExpired, authError.Kind)
}

func TestRefreshRejectsUnknownAndMissingTokens(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, _, err := svc.Refresh(context.Background(), "never-issued", "")
	var authError *AuthError
	require.ErrorAs(t, err, &authError)
	require.Equal(t, KindTokenInvalid, authError.Kind)

	_, _, err = svc.Refresh(context.Background(), "", "")
	require.ErrorAs(t, err, &authError)
	require.Equal(t, KindTokenMissing, authError.Kind)
}

func TestRefreshRejectsDeactivatedUser(t *testing.T) {
	svc, users, _ := newTestService(t)
	user, pair := register(t, svc)

	users.Deactivate(user.ID)

	_, _, err := svc.Refresh(context.Background(), pair.RefreshToken, "")
	var authError *AuthError
	require.ErrorAs(t, err, &authError)
	require.Equal(t, KindTokenInvalid, authError.Kind)
}

func TestLogoutIsIdempotent(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, pair := register(t, svc)

	require.NoError(t, svc.Logout(context.Background(), pair.RefreshToken))
	require.NoError(t, svc.Logout(context.Background(), pair.RefreshToken))
	require.NoError(t, svc.Logout(context.Background(), "never-issued"))
	require.NoError(t, svc.Logout(context.Background(), ""))

	// A logged-out token cannot be exchanged.
	_, _, err := svc.Refresh(context.Background(), pair.RefreshToken, "")
	var authError *AuthError
	require.ErrorAs(t, err, &authError)
}

func TestVerifyChecksDenylist(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, pair := register(t, svc)

	claims, err := svc.Verify(context.Background(), pair.AccessToken)
	require.NoError(t, err)

	require.NoError(t, svc.RevokeAccess(context.Background(), claims, "logout"))

	_, err = svc.Verify(context.Background(), pair.AccessToken)
	var authError *AuthError
	require.ErrorAs(t, err, &authError)
	require.Equal(t, KindTokenRevoked, authError.Kind)
}

func TestChangePasswordRevokesSessions(t *testing.T) {
	svc, _, _ := newTestService(t)
	user, pair := register(t, svc)

	err := svc.ChangePassword(context.Background(), user.ID.Hex(), "Passw0rd!", "N3wPassw0rd!")
	require.NoError(t, err)

	// Old refresh token is gone; old password no longer works.
	_, _, err = svc.Refresh(context.Background(), pair.RefreshToken, "")
	var authError *AuthError
	require.ErrorAs(t, err, &authError)

	_, _, err = svc.Login(context.Background(), "alice@example.com", "Passw0rd!", "")
	require.ErrorAs(t, err, &authError)

	_, _, err = svc.Login(context.Background(), "alice@example.com", "N3wPassw0rd!", "")
	require.NoError(t, err)
}

func TestChangePasswordRejectsWrongCurrent(t *testing.T) {
	svc, _, _ := newTestService(t)
	user, _ := register(t, svc)

	err := svc.ChangePassword(context.Background(), user.ID.Hex(), "wrong-password", "N3wPassw0rd!")
	var authError *AuthError
	require.ErrorAs(t, err, &authError)
	require.Equal(t, KindInvalidCredentials, authError.Kind)

	err = svc.ChangePassword(context.Background(), user.ID.Hex(), "Passw0rd!", "short")
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestSessionsListsActiveTokens(t *testing.T) {
	svc, _, _ := newTestService(t)
	user, pair := register(t, svc)

	_, _, err := svc.Login(context.Background(), "alice@example.com", "Passw0rd!", "")
	require.NoError(t, err)

	sessions, err := svc.Sessions(context.Background(), user.ID.Hex())
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	require.NoError(t, svc.Logout(context.Background(), pair.RefreshToken))

	sessions, err = svc.Sessions(context.Background(), user.ID.Hex())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
}

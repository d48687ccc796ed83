package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"assessly-backend/internal/models"
)

const testSecret = "test-secret"

func testUser() *models.User {
	return &models.User{
		ID:    primitive.NewObjectID(),
		Email: "alice@example.com",
		Role:  models.RoleAssessor,
		OrgRoles: map[string]string{
			"org-1": models.RoleAdmin,
		},
		IsActive: true,
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	user := testUser()
	signed, minted, err := SignAccessToken(user, "fam-1", testSecret, 15*time.Minute, time.Now())
	require.NoError(t, err)
	require.NotEmpty(t, minted.ID)

	claims, err := ParseAccessToken(signed, testSecret)
	require.NoError(t, err)
	require.Equal(t, user.ID.Hex(), claims.UserID())
	require.Equal(t, user.Email, claims.Email)
	require.Equal(t, models.RoleAssessor, claims.Role)
	require.Equal(t, "fam-1", claims.Family)
	require.Equal(t, minted.ID, claims.ID)
}

func TestAccessTokenExpiredKind(t *testing.T) {
	// Minted an hour in the past with a 15 minute lifetime.
	signed, _, err := SignAccessToken(testUser(), "fam-1", testSecret, 15*time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)

	_, err = ParseAccessToken(signed, testSecret)
	var authError *AuthError
	require.ErrorAs(t, err, &authError)
	require.Equal(t, KindTokenExpired, authError.Kind)
}

func TestAccessTokenInvalidKind(t *testing.T) {
	signed, _, err := SignAccessToken(testUser(), "fam-1", testSecret, 15*time.Minute, time.Now())
	require.NoError(t, err)

	cases := map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": signed,
	}
	secrets := map[string]string{
		"garbage":      testSecret,
		"wrong secret": "other-secret",
	}
	for name, raw := range cases {
		_, err := ParseAccessToken(raw, secrets[name])
		var authError *AuthError
		require.ErrorAs(t, err, &authError, name)
		require.Equal(t, KindTokenInvalid, authError.Kind, name)
	}
}

func TestAccessTokenMissingKind(t *testing.T) {
	_, err := ParseAccessToken("", testSecret)
	var authError *AuthError
	require.ErrorAs(t, err, &authError)
	require.Equal(t, KindTokenMissing, authError.Kind)
}

func TestNewRefreshTokenHashedForStorage(t *testing.T) {
	plain, hash, err := NewRefreshToken()
	require.NoError(t, err)
	require.Len(t, plain, 64)
	require.NotEqual(t, plain, hash)
	require.Equal(t, HashToken(plain), hash)

	plain2, hash2, err := NewRefreshToken()
	require.NoError(t, err)
	require.NotEqual(t, plain, plain2)
	require.NotEqual(t, hash, hash2)
}

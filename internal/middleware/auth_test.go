package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"assessly-backend/internal/auth"
	"assessly-backend/internal/config"
	"assessly-backend/internal/models"
	"assessly-backend/internal/store"
)

func newGuardedRouter(t *testing.T, roles ...string) (*gin.Engine, *auth.Service, *store.MemUserStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{
		JWTSecret:        "test-secret",
		AccessTokenTTL:   15 * time.Minute,
		RefreshTokenTTL:  7 * 24 * time.Hour,
		MaxLoginAttempts: 5,
		LockoutWindow:    30 * time.Minute,
		BcryptCost:       bcrypt.MinCost,
	}
	users := store.NewMemUserStore()
	svc := auth.NewService(cfg, users, store.NewMemRefreshTokenStore(), store.NewMemDenylistStore(), nil)

	r := gin.New()
	r.GET("/protected", RequireAuth(svc, users, roles...), func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"sub": claims.UserID()})
	})
	return r, svc, users
}

func get(r *gin.Engine, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func code(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Code
}

func TestRequireAuthMissingToken(t *testing.T) {
	r, _, _ := newGuardedRouter(t)

	rec := get(r, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, auth.KindTokenMissing, code(t, rec))

	rec = get(r, "not-a-bearer-header")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, auth.KindTokenInvalid, code(t, rec))
}

func TestRequireAuthExpiredVsInvalid(t *testing.T) {
	r, _, users := newGuardedRouter(t)
	user := registerUser(t, users)

	expired, _, err := auth.SignAccessToken(user, "fam", "test-secret", time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	rec := get(r, "Bearer "+expired)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, auth.KindTokenExpired, code(t, rec))

	rec = get(r, "Bearer garbage")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, auth.KindTokenInvalid, code(t, rec))
}

func TestRequireAuthDeactivatedUser(t *testing.T) {
	r, _, users := newGuardedRouter(t)
	user := registerUser(t, users)

	signed, _, err := auth.SignAccessToken(user, "fam", "test-secret", 15*time.Minute, time.Now())
	require.NoError(t, err)

	rec := get(r, "Bearer "+signed)
	require.Equal(t, http.StatusOK, rec.Code)

	users.Deactivate(user.ID)
	rec = get(r, "Bearer "+signed)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuthRoleAllowlist(t *testing.T) {
	r, _, users := newGuardedRouter(t, models.RoleAdmin)
	user := registerUser(t, users) // candidate

	signed, _, err := auth.SignAccessToken(user, "fam", "test-secret", 15*time.Minute, time.Now())
	require.NoError(t, err)

	rec := get(r, "Bearer "+signed)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func registerUser(t *testing.T, users *store.MemUserStore) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("Passw0rd!"), bcrypt.MinCost)
	require.NoError(t, err)

	now := time.Now()
	user := &models.User{
		Email:        "alice@example.com",
		PasswordHash: string(hash),
		Name:         "Alice",
		Role:         models.RoleCandidate,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	id, err := users.Insert(context.Background(), user)
	require.NoError(t, err)
	user.ID = id
	return user
}

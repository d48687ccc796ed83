package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"assessly-backend/internal/models"
)

// SignAccessToken mints a short-lived HS256 bearer token for the user.
// Every token carries a fresh JTI so individual tokens can be denylisted.
func SignAccessToken(user *models.User, family, secret string, ttl time.Duration, now time.Time) (string, *Claims, error) {
	claims := &Claims{
		Email:    user.Email,
		Role:     user.Role,
		OrgRoles: user.OrgRoles,
		Family:   family,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.Hex(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// ParseAccessToken verifies signature and expiry, mapping failures onto
// AuthError kinds so callers can tell "expired" from "malformed".
func ParseAccessToken(raw, secret string) (*Claims, error) {
	if raw == "" {
		return nil, authErr(KindTokenMissing, "missing token")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, authErr(KindTokenExpired, "token expired")
		}
		return nil, authErr(KindTokenInvalid, "invalid token")
	}
	if !token.Valid {
		return nil, authErr(KindTokenInvalid, "invalid token")
	}
	return claims, nil
}

// NewRefreshToken returns the opaque token handed to the client and the
// sha256 digest persisted in its place.
func NewRefreshToken() (plain, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	plain = hex.EncodeToString(buf)
	return plain, HashToken(plain), nil
}

// HashToken digests an opaque refresh token for storage and lookup.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// NewFamilyID mints the identifier shared by every step of one rotation chain.
func NewFamilyID() string {
	return uuid.NewString()
}

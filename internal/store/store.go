package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"assessly-backend/internal/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate key")
)

// UserStore persists platform accounts.
type UserStore interface {
	Insert(ctx context.Context, user *models.User) (primitive.ObjectID, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	RecordLoginFailure(ctx context.Context, id primitive.ObjectID, attempts int, lockUntil *time.Time) error
	RecordLoginSuccess(ctx context.Context, id primitive.ObjectID, at time.Time) error
	UpdatePasswordHash(ctx context.Context, id primitive.ObjectID, hash string, at time.Time) error
}

// RefreshTokenStore persists rotation chains. Tokens are revoked in place,
// never deleted.
type RefreshTokenStore interface {
	Insert(ctx context.Context, token *models.RefreshToken) (primitive.ObjectID, error)
	FindByHash(ctx context.Context, hash string) (*models.RefreshToken, error)
	// Claim atomically revokes the active token with the given hash and
	// returns its prior state. ErrNotFound means no active token matched:
	// either the hash is unknown or the token was already revoked.
	Claim(ctx context.Context, hash, reason string, at time.Time) (*models.RefreshToken, error)
	SetReplacedBy(ctx context.Context, id, replacedBy primitive.ObjectID) error
	Revoke(ctx context.Context, hash, reason string, at time.Time) (bool, error)
	RevokeFamily(ctx context.Context, familyID, reason string, at time.Time) error
	RevokeAllForUser(ctx context.Context, userID primitive.ObjectID, reason string, at time.Time) error
	ActiveForUser(ctx context.Context, userID primitive.ObjectID, now time.Time) ([]models.RefreshToken, error)
}

// DenylistStore records access tokens revoked before their natural expiry.
type DenylistStore interface {
	Add(ctx context.Context, entry *models.RevokedAccessToken) error
	Contains(ctx context.Context, jti string) (bool, error)
}

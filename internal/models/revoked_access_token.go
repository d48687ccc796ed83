package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RevokedAccessToken is a denylist entry for an access token revoked before
// its natural expiry. A TTL index on expiresAt removes entries once the
// token they cover would have expired anyway.
type RevokedAccessToken struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	JTI       string             `bson:"jti" json:"jti"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	ExpiresAt time.Time          `bson:"expiresAt" json:"expiresAt"`
	RevokedAt time.Time          `bson:"revokedAt" json:"revokedAt"`
	Reason    string             `bson:"reason,omitempty" json:"reason,omitempty"`
}

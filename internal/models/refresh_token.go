package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RefreshToken is one step of a rotation chain. Rows are revoked in place,
// never deleted, so the chain doubles as an audit trail.
type RefreshToken struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID          primitive.ObjectID  `bson:"userId" json:"userId"`
	TokenHash       string              `bson:"tokenHash" json:"-"`
	FamilyID        string              `bson:"familyId" json:"familyId"`
	ExpiresAt       time.Time           `bson:"expiresAt" json:"expiresAt"`
	CreatedAt       time.Time           `bson:"createdAt" json:"createdAt"`
	CreatedByIP     string              `bson:"createdByIp,omitempty" json:"createdByIp,omitempty"`
	RevokedAt       *time.Time          `bson:"revokedAt,omitempty" json:"revokedAt,omitempty"`
	RevokedReason   string              `bson:"revokedReason,omitempty" json:"revokedReason,omitempty"`
	ReplacedByToken *primitive.ObjectID `bson:"replacedByToken,omitempty" json:"replacedByToken,omitempty"`
}

// Active reports whether the token can still be exchanged at the given instant.
func (t *RefreshToken) Active(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

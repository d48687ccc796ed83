package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Roles a user can hold, globally or scoped to an organization.
const (
	RoleAdmin     = "admin"
	RoleAssessor  = "assessor"
	RoleCandidate = "candidate"
)

// KnownRole reports whether role is one of the fixed role values.
func KnownRole(role string) bool {
	switch role {
	case RoleAdmin, RoleAssessor, RoleCandidate:
		return true
	}
	return false
}

// User represents a platform account. Accounts are deactivated, never deleted.
type User struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email               string             `bson:"email" json:"email"`
	PasswordHash        string             `bson:"passwordHash" json:"-"`
	Name                string             `bson:"name" json:"name"`
	Role                string             `bson:"role" json:"role"`
	OrganizationID      primitive.ObjectID `bson:"organizationId,omitempty" json:"organizationId,omitempty"`
	OrgRoles            map[string]string  `bson:"orgRoles,omitempty" json:"orgRoles,omitempty"`
	IsActive            bool               `bson:"isActive" json:"isActive"`
	FailedLoginAttempts int                `bson:"failedLoginAttempts" json:"-"`
	LockUntil           *time.Time         `bson:"lockUntil,omitempty" json:"-"`
	LastLoginAt         *time.Time         `bson:"lastLoginAt,omitempty" json:"lastLoginAt,omitempty"`
	CreatedAt           time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt           time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Locked reports whether the account is inside a lockout window at the given instant.
func (u *User) Locked(now time.Time) bool {
	return u.LockUntil != nil && now.Before(*u.LockUntil)
}

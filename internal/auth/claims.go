package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the single typed claim shape carried by access tokens.
// Authorization checks go through HasRole/HasOrgRole instead of poking at
// raw claim maps.
type Claims struct {
	Email    string            `json:"email"`
	Role     string            `json:"role"`
	OrgRoles map[string]string `json:"orgRoles,omitempty"`
	Family   string            `json:"fam,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the subject claim, the hex ObjectID of the user.
func (c *Claims) UserID() string {
	return c.Subject
}

// HasRole reports whether the principal's global role is in the allowed set.
// An empty set allows any authenticated principal.
func (c *Claims) HasRole(allowed ...string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, role := range allowed {
		if c.Role == role {
			return true
		}
	}
	return false
}

// HasOrgRole reports whether the principal holds one of the allowed roles
// within the given organization. Platform admins pass regardless of
// membership.
func (c *Claims) HasOrgRole(orgID string, allowed ...string) bool {
	if c.Role == "admin" {
		return true
	}
	role, ok := c.OrgRoles[orgID]
	if !ok {
		return false
	}
	if len(allowed) == 0 {
		return true
	}
	for _, r := range allowed {
		if role == r {
			return true
		}
	}
	return false
}

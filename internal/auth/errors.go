package auth

import (
	"fmt"
	"time"
)

// AuthError kinds. Clients distinguish "expired, refresh" from
// "invalid, log in again" by code.
const (
	KindInvalidCredentials = "invalid_credentials"
	KindTokenMissing       = "token_missing"
	KindTokenInvalid       = "token_invalid"
	KindTokenExpired       = "token_expired"
	KindTokenRevoked       = "token_revoked"
	KindTokenReused        = "token_reused"
)

// ValidationError reports a malformed request body.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	return "validation failed: " + e.Fields[0]
}

// ConflictError reports a duplicate registration.
type ConflictError struct {
	Email string
}

func (e *ConflictError) Error() string {
	return "email already registered"
}

// AuthError is an authentication failure with a machine-readable kind.
type AuthError struct {
	Kind    string
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

func authErr(kind, message string) *AuthError {
	return &AuthError{Kind: kind, Message: message}
}

// AccountLockedError reports a login rejected because the account is
// inside a lockout window, regardless of password correctness.
type AccountLockedError struct {
	Until time.Time
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked until %s", e.Until.Format(time.RFC3339))
}

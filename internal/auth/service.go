package auth

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"assessly-backend/internal/config"
	"assessly-backend/internal/events"
	"assessly-backend/internal/models"
	"assessly-backend/internal/store"
)

const minPasswordLength = 8

// TokenPair is what a successful register/login/refresh hands back.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// Service owns credential checks and the token lifecycle. All state lives in
// the stores; the service itself is safe for concurrent use.
type Service struct {
	Users    store.UserStore
	Tokens   store.RefreshTokenStore
	Denylist store.DenylistStore
	Events   *events.Producer

	Secret           string
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	MaxLoginAttempts int
	LockoutWindow    time.Duration
	BcryptCost       int

	// Now is the service clock, swapped out in tests.
	Now func() time.Time
}

func NewService(cfg config.Config, users store.UserStore, tokens store.RefreshTokenStore, denylist store.DenylistStore, producer *events.Producer) *Service {
	return &Service{
		Users:            users,
		Tokens:           tokens,
		Denylist:         denylist,
		Events:           producer,
		Secret:           cfg.JWTSecret,
		AccessTTL:        cfg.AccessTokenTTL,
		RefreshTTL:       cfg.RefreshTokenTTL,
		MaxLoginAttempts: cfg.MaxLoginAttempts,
		LockoutWindow:    cfg.LockoutWindow,
		BcryptCost:       cfg.BcryptCost,
		Now:              time.Now,
	}
}

// Register creates an account and issues its first token pair.
func (s *Service) Register(ctx context.Context, name, email, password, role, ip string) (*models.User, *TokenPair, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if role == "" {
		role = models.RoleCandidate
	}

	var fields []string
	if name == "" {
		fields = append(fields, "name is required")
	}
	if email == "" {
		fields = append(fields, "email is required")
	}
	if password == "" {
		fields = append(fields, "password is required")
	} else if len(password) < minPasswordLength {
		fields = append(fields, "password must be at least 8 characters")
	}
	if !models.KnownRole(role) {
		fields = append(fields, "role is invalid")
	}
	if len(fields) > 0 {
		return nil, nil, &ValidationError{Fields: fields}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.BcryptCost)
	if err != nil {
		return nil, nil, err
	}

	now := s.Now()
	user := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		Name:         name,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	id, err := s.Users.Insert(ctx, user)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, nil, &ConflictError{Email: email}
		}
		return nil, nil, err
	}
	user.ID = id

	pair, err := s.issuePair(ctx, user, NewFamilyID(), ip)
	if err != nil {
		return nil, nil, err
	}

	s.publish(ctx, events.Event{Type: events.TypeUserRegistered, UserID: id.Hex(), Email: email, IP: ip})
	return user, pair, nil
}

// Login checks credentials, enforces the lockout window and issues a fresh
// token pair. Unknown user and wrong password are indistinguishable to the
// caller.
func (s *Service) Login(ctx context.Context, email, password, ip string) (*models.User, *TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, nil, &ValidationError{Fields: []string{"email and password are required"}}
	}

	user, err := s.Users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, authErr(KindInvalidCredentials, "invalid credentials")
		}
		return nil, nil, err
	}

	now := s.Now()
	if user.Locked(now) {
		return nil, nil, &AccountLockedError{Until: *user.LockUntil}
	}
	if !user.IsActive {
		return nil, nil, authErr(KindInvalidCredentials, "invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		attempts := user.FailedLoginAttempts + 1
		var lockUntil *time.Time
		if attempts >= s.MaxLoginAttempts {
			until := now.Add(s.LockoutWindow)
			lockUntil = &until
		}
		if err := s.Users.RecordLoginFailure(ctx, user.ID, attempts, lockUntil); err != nil {
			log.Println("[AUTH] [ERROR] recording login failure:", err)
		}
		if lockUntil != nil {
			s.publish(ctx, events.Event{Type: events.TypeAccountLocked, UserID: user.ID.Hex(), Email: email, IP: ip})
		} else {
			s.publish(ctx, events.Event{Type: events.TypeLoginFailed, UserID: user.ID.Hex(), Email: email, IP: ip})
		}
		return nil, nil, authErr(KindInvalidCredentials, "invalid credentials")
	}

	if err := s.Users.RecordLoginSuccess(ctx, user.ID, now); err != nil {
		log.Println("[AUTH] [ERROR] recording login success:", err)
	}
	user.FailedLoginAttempts = 0
	user.LockUntil = nil
	user.LastLoginAt = &now

	pair, err := s.issuePair(ctx, user, NewFamilyID(), ip)
	if err != nil {
		return nil, nil, err
	}

	s.publish(ctx, events.Event{Type: events.TypeUserLogin, UserID: user.ID.Hex(), Email: email, IP: ip})
	return user, pair, nil
}

// Refresh exchanges a refresh token for a new pair, revoking the presented
// token in the same step. Presenting an already-rotated token revokes its
// whole family.
func (s *Service) Refresh(ctx context.Context, presented, ip string) (*models.User, *TokenPair, error) {
	presented = strings.TrimSpace(presented)
	if presented == "" {
		return nil, nil, authErr(KindTokenMissing, "missing refresh token")
	}

	now := s.Now()
	hash := HashToken(presented)

	claimed, err := s.Tokens.Claim(ctx, hash, "rotated", now)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, nil, err
		}
		// No active token matched. If the hash exists it was already
		// revoked: treat that as reuse and burn the family.
		prior, findErr := s.Tokens.FindByHash(ctx, hash)
		if findErr != nil {
			return nil, nil, authErr(KindTokenInvalid, "invalid refresh token")
		}
		if revokeErr := s.Tokens.RevokeFamily(ctx, prior.FamilyID, "reuse_detected", now); revokeErr != nil {
			log.Println("[AUTH] [ERROR] revoking token family:", revokeErr)
		}
		s.publish(ctx, events.Event{Type: events.TypeTokenReuseDetected, UserID: prior.UserID.Hex(), IP: ip})
		return nil, nil, authErr(KindTokenReused, "refresh token already used")
	}

	if now.After(claimed.ExpiresAt) {
		return nil, nil, authErr(KindTokenExpired, "refresh token expired")
	}

	user, err := s.Users.FindByID(ctx, claimed.UserID.Hex())
	if err != nil {
		return nil, nil, authErr(KindTokenInvalid, "invalid refresh token")
	}
	if !user.IsActive {
		return nil, nil, authErr(KindTokenInvalid, "invalid refresh token")
	}

	pair, newID, err := s.issuePairWithID(ctx, user, claimed.FamilyID, ip)
	if err != nil {
		return nil, nil, err
	}
	if err := s.Tokens.SetReplacedBy(ctx, claimed.ID, newID); err != nil {
		log.Println("[AUTH] [ERROR] linking replacement token:", err)
	}

	return user, pair, nil
}

// Logout revokes the presented refresh token. It is idempotent: an absent
// or already-revoked token is not an error.
func (s *Service) Logout(ctx context.Context, presented string) error {
	presented = strings.TrimSpace(presented)
	if presented == "" {
		return nil
	}

	matched, err := s.Tokens.Revoke(ctx, HashToken(presented), "logout", s.Now())
	if err != nil {
		return err
	}
	if matched {
		if prior, findErr := s.Tokens.FindByHash(ctx, HashToken(presented)); findErr == nil {
			s.publish(ctx, events.Event{Type: events.TypeUserLogout, UserID: prior.UserID.Hex()})
		}
	}
	return nil
}

// RevokeAccess denylists a still-valid access token until its natural expiry.
func (s *Service) RevokeAccess(ctx context.Context, claims *Claims, reason string) error {
	userID, err := primitive.ObjectIDFromHex(claims.UserID())
	if err != nil {
		return authErr(KindTokenInvalid, "invalid token")
	}
	expiresAt := s.Now().Add(s.AccessTTL)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return s.Denylist.Add(ctx, &models.RevokedAccessToken{
		JTI:       claims.ID,
		UserID:    userID,
		ExpiresAt: expiresAt,
		RevokedAt: s.Now(),
		Reason:    reason,
	})
}

// Verify checks signature, expiry and the denylist, returning the typed
// claims the middleware attaches to the request.
func (s *Service) Verify(ctx context.Context, raw string) (*Claims, error) {
	claims, err := ParseAccessToken(raw, s.Secret)
	if err != nil {
		return nil, err
	}
	revoked, err := s.Denylist.Contains(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, authErr(KindTokenRevoked, "token revoked")
	}
	return claims, nil
}

// ChangePassword verifies the current password, swaps the hash and revokes
// every outstanding refresh token for the user.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	if len(next) < minPasswordLength {
		return &ValidationError{Fields: []string{"password must be at least 8 characters"}}
	}

	user, err := s.Users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return authErr(KindInvalidCredentials, "invalid credentials")
		}
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return authErr(KindInvalidCredentials, "invalid credentials")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.BcryptCost)
	if err != nil {
		return err
	}

	now := s.Now()
	if err := s.Users.UpdatePasswordHash(ctx, user.ID, string(hash), now); err != nil {
		return err
	}
	if err := s.Tokens.RevokeAllForUser(ctx, user.ID, "password_change", now); err != nil {
		log.Println("[AUTH] [ERROR] revoking tokens after password change:", err)
	}

	s.publish(ctx, events.Event{Type: events.TypePasswordChanged, UserID: user.ID.Hex(), Email: user.Email})
	return nil
}

// Sessions lists the user's active refresh tokens.
func (s *Service) Sessions(ctx context.Context, userID string) ([]models.RefreshToken, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, authErr(KindTokenInvalid, "invalid user id")
	}
	return s.Tokens.ActiveForUser(ctx, oid, s.Now())
}

func (s *Service) issuePair(ctx context.Context, user *models.User, family, ip string) (*TokenPair, error) {
	pair, _, err := s.issuePairWithID(ctx, user, family, ip)
	return pair, err
}

func (s *Service) issuePairWithID(ctx context.Context, user *models.User, family, ip string) (*TokenPair, primitive.ObjectID, error) {
	now := s.Now()

	access, _, err := SignAccessToken(user, family, s.Secret, s.AccessTTL, now)
	if err != nil {
		return nil, primitive.NilObjectID, err
	}

	plain, hash, err := NewRefreshToken()
	if err != nil {
		return nil, primitive.NilObjectID, err
	}

	id, err := s.Tokens.Insert(ctx, &models.RefreshToken{
		UserID:      user.ID,
		TokenHash:   hash,
		FamilyID:    family,
		ExpiresAt:   now.Add(s.RefreshTTL),
		CreatedAt:   now,
		CreatedByIP: ip,
	})
	if err != nil {
		return nil, primitive.NilObjectID, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: plain,
		ExpiresIn:    int64(s.AccessTTL.Seconds()),
	}, id, nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if err := s.Events.Publish(ctx, event); err != nil {
		log.Println("[AUTH] [ERROR] event publish failed:", err)
	}
}

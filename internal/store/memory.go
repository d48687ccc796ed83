package store

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"assessly-backend/internal/models"
)

// In-memory store implementations backing the test suites, mirroring the
// Mongo stores' semantics (including the atomic Claim).

type MemUserStore struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*models.User
}

func NewMemUserStore() *MemUserStore {
	return &MemUserStore{users: make(map[primitive.ObjectID]*models.User)}
}

func (s *MemUserStore) Insert(_ context.Context, user *models.User) (primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return primitive.NilObjectID, ErrDuplicate
		}
	}
	id := primitive.NewObjectID()
	clone := *user
	clone.ID = id
	s.users[id] = &clone
	return id, nil
}

func (s *MemUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemUserStore) FindByID(_ context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[oid]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *user
	return &clone, nil
}

func (s *MemUserStore) RecordLoginFailure(_ context.Context, id primitive.ObjectID, attempts int, lockUntil *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user, ok := s.users[id]; ok {
		user.FailedLoginAttempts = attempts
		if lockUntil != nil {
			until := *lockUntil
			user.LockUntil = &until
		}
	}
	return nil
}

func (s *MemUserStore) RecordLoginSuccess(_ context.Context, id primitive.ObjectID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user, ok := s.users[id]; ok {
		user.FailedLoginAttempts = 0
		user.LockUntil = nil
		stamp := at
		user.LastLoginAt = &stamp
		user.UpdatedAt = at
	}
	return nil
}

func (s *MemUserStore) UpdatePasswordHash(_ context.Context, id primitive.ObjectID, hash string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user, ok := s.users[id]; ok {
		user.PasswordHash = hash
		user.UpdatedAt = at
	}
	return nil
}

// Deactivate flips isActive off, mirroring the soft-deactivation path.
func (s *MemUserStore) Deactivate(id primitive.ObjectID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user, ok := s.users[id]; ok {
		user.IsActive = false
	}
}

type MemRefreshTokenStore struct {
	mu     sync.Mutex
	tokens map[primitive.ObjectID]*models.RefreshToken
}

func NewMemRefreshTokenStore() *MemRefreshTokenStore {
	return &MemRefreshTokenStore{tokens: make(map[primitive.ObjectID]*models.RefreshToken)}
}

func (s *MemRefreshTokenStore) Insert(_ context.Context, token *models.RefreshToken) (primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := primitive.NewObjectID()
	clone := *token
	clone.ID = id
	s.tokens[id] = &clone
	return id, nil
}

func (s *MemRefreshTokenStore) FindByHash(_ context.Context, hash string) (*models.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, token := range s.tokens {
		if token.TokenHash == hash {
			clone := *token
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemRefreshTokenStore) Claim(_ context.Context, hash, reason string, at time.Time) (*models.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, token := range s.tokens {
		if token.TokenHash == hash && token.RevokedAt == nil {
			prior := *token
			stamp := at
			token.RevokedAt = &stamp
			token.RevokedReason = reason
			return &prior, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemRefreshTokenStore) SetReplacedBy(_ context.Context, id, replacedBy primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token, ok := s.tokens[id]; ok {
		rb := replacedBy
		token.ReplacedByToken = &rb
	}
	return nil
}

func (s *MemRefreshTokenStore) Revoke(_ context.Context, hash, reason string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, token := range s.tokens {
		if token.TokenHash == hash && token.RevokedAt == nil {
			stamp := at
			token.RevokedAt = &stamp
			token.RevokedReason = reason
			return true, nil
		}
	}
	return false, nil
}

func (s *MemRefreshTokenStore) RevokeFamily(_ context.Context, familyID, reason string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, token := range s.tokens {
		if token.FamilyID == familyID && token.RevokedAt == nil {
			stamp := at
			token.RevokedAt = &stamp
			token.RevokedReason = reason
		}
	}
	return nil
}

func (s *MemRefreshTokenStore) RevokeAllForUser(_ context.Context, userID primitive.ObjectID, reason string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, token := range s.tokens {
		if token.UserID == userID && token.RevokedAt == nil {
			stamp := at
			token.RevokedAt = &stamp
			token.RevokedReason = reason
		}
	}
	return nil
}

func (s *MemRefreshTokenStore) ActiveForUser(_ context.Context, userID primitive.ObjectID, now time.Time) ([]models.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var active []models.RefreshToken
	for _, token := range s.tokens {
		if token.UserID == userID && token.Active(now) {
			active = append(active, *token)
		}
	}
	return active, nil
}

type MemDenylistStore struct {
	mu      sync.Mutex
	entries map[string]models.RevokedAccessToken
}

func NewMemDenylistStore() *MemDenylistStore {
	return &MemDenylistStore{entries: make(map[string]models.RevokedAccessToken)}
}

func (s *MemDenylistStore) Add(_ context.Context, entry *models.RevokedAccessToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.JTI] = *entry
	return nil
}

func (s *MemDenylistStore) Contains(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[jti]
	return ok, nil
}

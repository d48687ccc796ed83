package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"assessly-backend/internal/models"
)

const queryTimeout = 5 * time.Second

// MongoUserStore implements UserStore over the users collection.
type MongoUserStore struct {
	col *mongo.Collection
}

func NewMongoUserStore(db *mongo.Database) *MongoUserStore {
	return &MongoUserStore{col: db.Collection("users")}
}

func (s *MongoUserStore) Insert(ctx context.Context, user *models.User) (primitive.ObjectID, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := s.col.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, ErrDuplicate
		}
		return primitive.NilObjectID, err
	}
	id, _ := res.InsertedID.(primitive.ObjectID)
	return id, nil
}

func (s *MongoUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var user models.User
	if err := s.col.FindOne(ctx, bson.M{"email": email}).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *MongoUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var user models.User
	if err := s.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *MongoUserStore) RecordLoginFailure(ctx context.Context, id primitive.ObjectID, attempts int, lockUntil *time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	set := bson.M{"failedLoginAttempts": attempts}
	if lockUntil != nil {
		set["lockUntil"] = *lockUntil
	}
	_, err := s.col.UpdateByID(ctx, id, bson.M{"$set": set})
	return err
}

func (s *MongoUserStore) RecordLoginSuccess(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.col.UpdateByID(ctx, id, bson.M{
		"$set":   bson.M{"failedLoginAttempts": 0, "lastLoginAt": at, "updatedAt": at},
		"$unset": bson.M{"lockUntil": ""},
	})
	return err
}

func (s *MongoUserStore) UpdatePasswordHash(ctx context.Context, id primitive.ObjectID, hash string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.col.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"passwordHash": hash, "updatedAt": at},
	})
	return err
}

// MongoRefreshTokenStore implements RefreshTokenStore over refresh_tokens.
type MongoRefreshTokenStore struct {
	col *mongo.Collection
}

func NewMongoRefreshTokenStore(db *mongo.Database) *MongoRefreshTokenStore {
	return &MongoRefreshTokenStore{col: db.Collection("refresh_tokens")}
}

func (s *MongoRefreshTokenStore) Insert(ctx context.Context, token *models.RefreshToken) (primitive.ObjectID, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := s.col.InsertOne(ctx, token)
	if err != nil {
		return primitive.NilObjectID, err
	}
	id, _ := res.InsertedID.(primitive.ObjectID)
	return id, nil
}

func (s *MongoRefreshTokenStore) FindByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var token models.RefreshToken
	if err := s.col.FindOne(ctx, bson.M{"tokenHash": hash}).Decode(&token); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &token, nil
}

// Claim marks the active token revoked in a single conditional update, so
// two concurrent uses of the same token cannot both succeed.
func (s *MongoRefreshTokenStore) Claim(ctx context.Context, hash, reason string, at time.Time) (*models.RefreshToken, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var token models.RefreshToken
	err := s.col.FindOneAndUpdate(ctx,
		bson.M{"tokenHash": hash, "revokedAt": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"revokedAt": at, "revokedReason": reason}},
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	).Decode(&token)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &token, nil
}

func (s *MongoRefreshTokenStore) SetReplacedBy(ctx context.Context, id, replacedBy primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.col.UpdateByID(ctx, id, bson.M{"$set": bson.M{"replacedByToken": replacedBy}})
	return err
}

func (s *MongoRefreshTokenStore) Revoke(ctx context.Context, hash, reason string, at time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := s.col.UpdateOne(ctx,
		bson.M{"tokenHash": hash, "revokedAt": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"revokedAt": at, "revokedReason": reason}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (s *MongoRefreshTokenStore) RevokeFamily(ctx context.Context, familyID, reason string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.col.UpdateMany(ctx,
		bson.M{"familyId": familyID, "revokedAt": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"revokedAt": at, "revokedReason": reason}},
	)
	return err
}

func (s *MongoRefreshTokenStore) RevokeAllForUser(ctx context.Context, userID primitive.ObjectID, reason string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.col.UpdateMany(ctx,
		bson.M{"userId": userID, "revokedAt": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"revokedAt": at, "revokedReason": reason}},
	)
	return err
}

func (s *MongoRefreshTokenStore) ActiveForUser(ctx context.Context, userID primitive.ObjectID, now time.Time) ([]models.RefreshToken, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	cur, err := s.col.Find(ctx, bson.M{
		"userId":    userID,
		"revokedAt": bson.M{"$exists": false},
		"expiresAt": bson.M{"$gt": now},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var tokens []models.RefreshToken
	if err := cur.All(ctx, &tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

// MongoDenylistStore implements DenylistStore over revoked_access_tokens.
// A TTL index on expiresAt keeps the collection bounded.
type MongoDenylistStore struct {
	col *mongo.Collection
}

func NewMongoDenylistStore(db *mongo.Database) *MongoDenylistStore {
	return &MongoDenylistStore{col: db.Collection("revoked_access_tokens")}
}

func (s *MongoDenylistStore) Add(ctx context.Context, entry *models.RevokedAccessToken) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.col.InsertOne(ctx, entry)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

func (s *MongoDenylistStore) Contains(ctx context.Context, jti string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	count, err := s.col.CountDocuments(ctx, bson.M{"jti": jti})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/contactly/core/internal/models"
)

// Store persists user records in mongo. Lookups return (nil, nil) when the
// user does not exist; callers decide whether that is an error.
type Store struct {
	coll *mongo.Collection
}

func NewStore(db *mongo.Database) *Store {
	return &Store{coll: db.Collection(models.UserCollection)}
}

// ErrEmailTaken is returned when the unique email index rejects an insert.
var ErrEmailTaken = errors.New("email already registered")

func (s *Store) Create(ctx context.Context, u *models.User) error {
	u.Email = NormalizeEmail(u.Email)
	_, err := s.coll.InsertOne(ctx, u)
	if mongo.IsDuplicateKeyError(err) {
		return ErrEmailTaken
	}
	return err
}

func (s *Store) FindByID(ctx context.Context, id string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": NormalizeEmail(email)})
}

func (s *Store) FindByProvider(ctx context.Context, provider, providerUID string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"provider": provider, "provider_uid": providerUID})
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	err := s.coll.FindOne(ctx, filter).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// SetVerified flips the verification flag.
func (s *Store) SetVerified(ctx context.Context, id string) error {
	return s.set(ctx, id, bson.M{"is_verified": true})
}

// SetPassword replaces the stored password hash.
func (s *Store) SetPassword(ctx context.Context, id, passwordHash string) error {
	return s.set(ctx, id, bson.M{"password": passwordHash})
}

// RecordLogin stamps the last login time and ip.
func (s *Store) RecordLogin(ctx context.Context, id, ip string) error {
	now := time.Now()
	return s.set(ctx, id, bson.M{"last_login_time": now, "last_login_ip": ip})
}

// UpdateProfile applies the given profile fields.
func (s *Store) UpdateProfile(ctx context.Context, id string, fields bson.M) error {
	return s.set(ctx, id, fields)
}

func (s *Store) set(ctx context.Context, id string, fields bson.M) error {
	fields["updated_at"] = time.Now()
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// Delete removes the user record.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

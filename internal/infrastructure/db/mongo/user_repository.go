package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/identicore/identity-service/internal/core/domain"
	"github.com/identicore/identity-service/internal/core/ports"
)

const usersCollection = "users"

// UserRepository is the Mongo-backed identity store. The unique index on
// email (see EnsureIndexes) makes the duplicate check during Create atomic;
// all updates are single-document writes.
type UserRepository struct {
	coll *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection(usersCollection)}
}

type userDoc struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	Email          string             `bson:"email"`
	HashedPassword []byte             `bson:"hashed_password"`
	SessionToken   *string            `bson:"session_token,omitempty"`
	ResetToken     *string            `bson:"reset_token,omitempty"`
	CreatedAt      int64              `bson:"created_at"`
	UpdatedAt      int64              `bson:"updated_at"`
}

func (d *userDoc) toDomain() *domain.User {
	return &domain.User{
		ID:             d.ID.Hex(),
		Email:          d.Email,
		HashedPassword: d.HashedPassword,
		SessionToken:   d.SessionToken,
		ResetToken:     d.ResetToken,
		CreatedAt:      unixToTime(d.CreatedAt),
		UpdatedAt:      unixToTime(d.UpdatedAt),
	}
}

// Create persists a new record with null token fields. A duplicate-key error
// from the unique email index maps to domain.ErrUserExists, so two
// concurrent creations of the same email cannot both succeed.
func (r *UserRepository) Create(ctx context.Context, email string, hashedPassword []byte) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now := time.Now().UTC()
	doc := userDoc{
		Email:          email,
		HashedPassword: hashedPassword,
		CreatedAt:      now.Unix(),
		UpdatedAt:      now.Unix(),
	}

	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrUserExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	doc.ID = res.InsertedID.(primitive.ObjectID)
	return doc.toDomain(), nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

// FindBySessionToken matches only records whose stored token equals the
// argument; records with a cleared (absent) token never match because the
// filter value is a non-empty string.
func (r *UserRepository) FindBySessionToken(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, domain.ErrUserNotFound
	}
	return r.findOne(ctx, bson.M{"session_token": token})
}

func (r *UserRepository) FindByResetToken(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, domain.ErrUserNotFound
	}
	return r.findOne(ctx, bson.M{"reset_token": token})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc userDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return doc.toDomain(), nil
}

// Update applies the mutable fields named by update in a single atomic
// document write. Email and identifier cannot be touched: updateDocument
// only ever emits the three allowed fields.
func (r *UserRepository) Update(ctx context.Context, id string, update ports.UserUpdate) error {
	if update.IsZero() {
		return domain.ErrNoFields
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrUserNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.coll.UpdateByID(ctx, oid, updateDocument(update))
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// updateDocument translates a UserUpdate into a Mongo update document. Token
// fields use the tri-state convention from ports.UserUpdate: a pointer to
// the empty string unsets the field, a pointer to a value sets it.
func updateDocument(update ports.UserUpdate) bson.M {
	set := bson.M{"updated_at": time.Now().UTC().Unix()}
	unset := bson.M{}

	if update.HashedPassword != nil {
		set["hashed_password"] = update.HashedPassword
	}
	if update.SessionToken != nil {
		if *update.SessionToken == "" {
			unset["session_token"] = ""
		} else {
			set["session_token"] = *update.SessionToken
		}
	}
	if update.ResetToken != nil {
		if *update.ResetToken == "" {
			unset["reset_token"] = ""
		} else {
			set["reset_token"] = *update.ResetToken
		}
	}

	doc := bson.M{"$set": set}
	if len(unset) > 0 {
		doc["$unset"] = unset
	}
	return doc
}

// EnsureIndexes creates the uniqueness constraints the store relies on.
// Token indexes are partial so uniqueness only applies to records that
// actually carry a token.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "session_token", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.M{"session_token": bson.M{"$type": "string"}}),
		},
		{
			Keys: bson.D{{Key: "reset_token", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.M{"reset_token": bson.M{"$type": "string"}}),
		},
	}

	_, err := r.coll.Indexes().CreateMany(ctx, indexes)
	return err
}

func unixToTime(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}

package ports

import (
	"context"

	"github.com/identicore/identity-service/internal/core/domain"
)

// UserUpdate names the only mutable fields of a user record. Identifier and
// email are write-once and deliberately absent.
//
// Token fields are tri-state: a nil pointer leaves the stored value
// untouched, a pointer to the empty string clears it to null, and a pointer
// to a non-empty string replaces it. Empty-string tokens are never issued,
// so the encoding is unambiguous.
type UserUpdate struct {
	HashedPassword []byte  // non-nil replaces the stored hash
	SessionToken   *string // see tri-state semantics above
	ResetToken     *string // see tri-state semantics above
}

// IsZero reports whether the update names no fields at all.
func (u UserUpdate) IsZero() bool {
	return u.HashedPassword == nil && u.SessionToken == nil && u.ResetToken == nil
}

// UserRepository is the identity store: a durable mapping from identity
// attributes to user records. Implementations must enforce email uniqueness
// at creation time (not check-then-act) and apply updates atomically per
// record.
type UserRepository interface {
	// Create persists a new record with a store-assigned identifier and null
	// token fields. Returns domain.ErrUserExists when the email is taken.
	Create(ctx context.Context, email string, hashedPassword []byte) (*domain.User, error)

	// The four point lookups. Each returns domain.ErrUserNotFound on a miss.
	// Token lookups never match records whose stored token is null.
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindBySessionToken(ctx context.Context, token string) (*domain.User, error)
	FindByResetToken(ctx context.Context, token string) (*domain.User, error)

	// Update applies the named fields to a single record in one atomic write.
	// Returns domain.ErrNoFields for an empty update and
	// domain.ErrUserNotFound when the identifier does not exist.
	Update(ctx context.Context, id string, update UserUpdate) error
}

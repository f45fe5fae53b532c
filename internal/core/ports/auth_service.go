package ports

import (
	"context"

	"github.com/identicore/identity-service/internal/core/domain"
)

// AuthService is the authentication authority consumed by the transport
// layer. All inputs are plain strings; session and reset tokens are opaque
// to callers.
type AuthService interface {
	// Register creates a new identity. Returns domain.ErrUserExists when the
	// email is already registered.
	Register(ctx context.Context, email, password string) (*domain.User, error)

	// VerifyLogin reports whether the credentials match a registered
	// identity. Unknown email and wrong password both yield false; the
	// caller cannot distinguish them.
	VerifyLogin(ctx context.Context, email, password string) (bool, error)

	// CreateSession issues a fresh session token for the email, replacing
	// any prior token (a new login invalidates the previous session).
	// Returns "" without error when the email is unknown.
	CreateSession(ctx context.Context, email string) (string, error)

	// ResolveSession returns the user owning the session token, or nil when
	// the token is unknown or stale. Absence is a normal outcome.
	ResolveSession(ctx context.Context, sessionToken string) (*domain.User, error)

	// DestroySession clears the identified user's session token. Idempotent:
	// an unknown identifier or an already-cleared session is not an error.
	DestroySession(ctx context.Context, userID string) error

	// IssueResetToken generates a single-use password-reset token for the
	// email, replacing any unredeemed prior token. Returns
	// domain.ErrUserNotFound when the email is unknown.
	IssueResetToken(ctx context.Context, email string) (string, error)

	// RedeemResetToken sets a new password for the token's owner and
	// consumes the token in the same update. Returns
	// domain.ErrInvalidResetToken when no record carries the token.
	RedeemResetToken(ctx context.Context, resetToken, newPassword string) error
}

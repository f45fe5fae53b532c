package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/identicore/identity-service/internal/core/domain"
	"github.com/identicore/identity-service/internal/core/ports"
	"github.com/identicore/identity-service/pkg/logger"
)

// ResetTokenTracker abstracts the optional reset-token expiry store (Redis).
// A nil tracker means issued reset tokens never expire.
type ResetTokenTracker interface {
	// Mark records a freshly issued token with the configured TTL.
	Mark(ctx context.Context, token string) error
	// IsLive reports whether the token's TTL marker still exists.
	IsLive(ctx context.Context, token string) (bool, error)
}

// AuthService is the authentication authority. It is stateless between
// calls: every operation re-fetches the record it needs, so it always
// observes the latest persisted state.
type AuthService struct {
	repo     ports.UserRepository
	hasher   ports.CredentialHasher
	tracker  ResetTokenTracker
	log      zerolog.Logger
	newToken func() string
}

// NewAuthService wires the authority. tracker may be nil to disable
// reset-token expiry.
func NewAuthService(repo ports.UserRepository, hasher ports.CredentialHasher, tracker ResetTokenTracker, log zerolog.Logger) *AuthService {
	return &AuthService{
		repo:     repo,
		hasher:   hasher,
		tracker:  tracker,
		log:      log,
		newToken: uuid.NewString,
	}
}

// Register creates a new identity. The store's unique constraint on email is
// the authoritative duplicate check; two concurrent registrations of the
// same email resolve to one success and one domain.ErrUserExists.
func (s *AuthService) Register(ctx context.Context, email, password string) (*domain.User, error) {
	if email == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, email, hash)
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("user_id", user.ID).Str("email", logger.MaskEmail(user.Email)).Msg("user registered")
	return user, nil
}

// VerifyLogin collapses "unknown email" and "wrong password" into the same
// false result so the outcome never reveals whether an account exists.
func (s *AuthService) VerifyLogin(ctx context.Context, email, password string) (bool, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}
	return s.hasher.Verify(user.HashedPassword, password), nil
}

// CreateSession issues a fresh session token, overwriting any prior one: a
// new login invalidates the previous session, so each account has at most
// one active session.
func (s *AuthService) CreateSession(ctx context.Context, email string) (string, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", nil
		}
		return "", err
	}

	token := s.newToken()
	if err := s.repo.Update(ctx, user.ID, ports.UserUpdate{SessionToken: &token}); err != nil {
		return "", fmt.Errorf("store session token: %w", err)
	}

	s.log.Debug().Str("user_id", user.ID).Msg("session created")
	return token, nil
}

// ResolveSession maps a bearer session token back to its user. Unknown and
// stale tokens resolve to nil without error; absence is the normal outcome
// for an invalidated session.
func (s *AuthService) ResolveSession(ctx context.Context, sessionToken string) (*domain.User, error) {
	if sessionToken == "" {
		return nil, nil
	}

	user, err := s.repo.FindBySessionToken(ctx, sessionToken)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, nil
		}
		return nil, err
	}
	// Guard against a store that matched a cleared token field.
	if !user.HasSession() {
		return nil, nil
	}
	return user, nil
}

// DestroySession clears the user's session token. Idempotent: destroying a
// session that does not exist is a no-op, not an error.
func (s *AuthService) DestroySession(ctx context.Context, userID string) error {
	cleared := ""
	err := s.repo.Update(ctx, userID, ports.UserUpdate{SessionToken: &cleared})
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil
		}
		return err
	}
	s.log.Debug().Str("user_id", userID).Msg("session destroyed")
	return nil
}

// IssueResetToken generates a single-use password-reset token. Issuing a new
// token overwrites any unredeemed prior one, so only the most recent token
// is valid.
func (s *AuthService) IssueResetToken(ctx context.Context, email string) (string, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return "", err
	}

	token := s.newToken()
	if err := s.repo.Update(ctx, user.ID, ports.UserUpdate{ResetToken: &token}); err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}
	if s.tracker != nil {
		if err := s.tracker.Mark(ctx, token); err != nil {
			// Expiry tracking is advisory; the token itself is persisted.
			s.log.Warn().Err(err).Msg("reset token TTL mark failed")
		}
	}

	s.log.Info().Str("user_id", user.ID).Str("email", logger.MaskEmail(user.Email)).Msg("reset token issued")
	return token, nil
}

// RedeemResetToken consumes a reset token: the new password is hashed and
// persisted, and the token is cleared to null in the same update, making it
// single-use by construction.
func (s *AuthService) RedeemResetToken(ctx context.Context, resetToken, newPassword string) error {
	if resetToken == "" || newPassword == "" {
		return domain.ErrInvalidResetToken
	}

	user, err := s.repo.FindByResetToken(ctx, resetToken)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrInvalidResetToken
		}
		return err
	}

	if s.tracker != nil {
		live, err := s.tracker.IsLive(ctx, resetToken)
		if err != nil {
			return fmt.Errorf("reset token TTL check: %w", err)
		}
		if !live {
			return domain.ErrInvalidResetToken
		}
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	cleared := ""
	if err := s.repo.Update(ctx, user.ID, ports.UserUpdate{HashedPassword: hash, ResetToken: &cleared}); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	s.log.Info().Str("user_id", user.ID).Msg("password updated via reset token")
	return nil
}

package domain

import (
	"errors"
	"time"
)

// User models a registered identity. ID and Email are write-once; the token
// fields are nullable and mutated only through the update flow.
type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	HashedPassword []byte    `json:"-"`
	SessionToken   *string   `json:"-"`
	ResetToken     *string   `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// HasSession reports whether the record carries an active session token.
func (u *User) HasSession() bool {
	return u.SessionToken != nil && *u.SessionToken != ""
}

var (
	// ErrUserExists signals a registration conflict: the email is taken.
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound signals a lookup miss on any identity key.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials covers empty or rejected credential input.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidResetToken signals a reset-token redemption miss: the token
	// was never issued, was already consumed, or has expired.
	ErrInvalidResetToken = errors.New("invalid or expired reset token")
	// ErrNoFields signals an update request naming nothing to change.
	// A caller contract error, not an expected runtime condition.
	ErrNoFields = errors.New("update names no mutable fields")
)

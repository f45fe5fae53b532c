package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ResetTokenTracker bounds the lifetime of issued password-reset tokens.
// Each issued token gets a marker key with the configured TTL; once the
// marker lapses, redemption treats the token as expired.
// Key format: reset_ttl:<token>
type ResetTokenTracker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewResetTokenTracker creates a tracker applying ttl to every issued token.
func NewResetTokenTracker(client *redis.Client, ttl time.Duration) *ResetTokenTracker {
	return &ResetTokenTracker{client: client, ttl: ttl}
}

// Mark records a freshly issued token. The marker expires after the TTL.
func (t *ResetTokenTracker) Mark(ctx context.Context, token string) error {
	return t.client.Set(ctx, t.key(token), "1", t.ttl).Err()
}

// IsLive reports whether the token's marker still exists.
func (t *ResetTokenTracker) IsLive(ctx context.Context, token string) (bool, error) {
	n, err := t.client.Exists(ctx, t.key(token)).Result()
	if err != nil {
		return false, fmt.Errorf("reset ttl check: %w", err)
	}
	return n > 0, nil
}

func (t *ResetTokenTracker) key(token string) string {
	return "reset_ttl:" + token
}

package service

import (
	"golang.org/x/crypto/bcrypt"
)

// BcryptHasher implements ports.CredentialHasher on bcrypt. Each Hash call
// draws a fresh random salt, so equal plaintexts hash to distinct values.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a hasher at the given cost. A cost outside
// bcrypt's supported range falls back to bcrypt.DefaultCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(plaintext string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
}

// Verify reports whether plaintext matches the stored hash. Malformed hash
// input yields false rather than an error; bcrypt's comparison is
// constant-time over the digest.
func (h *BcryptHasher) Verify(hashed []byte, plaintext string) bool {
	return bcrypt.CompareHashAndPassword(hashed, []byte(plaintext)) == nil
}

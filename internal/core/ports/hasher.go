package ports

// CredentialHasher is the one-way password transform. Hash must salt every
// call so that equal plaintexts produce distinct outputs; Verify must be
// constant-time-safe and return false (never panic) on malformed input.
type CredentialHasher interface {
	Hash(plaintext string) ([]byte, error)
	Verify(hashed []byte, plaintext string) bool
}

package logger

import "strings"

const redactMark = "***"

// MaskEmail redacts the local part of an email address for log output,
// keeping the first character and the domain: "alice@x.com" → "a***@x.com".
// Values that do not look like an email are fully redacted.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return redactMark
	}
	return email[:1] + redactMark + email[at:]
}

// MaskToken redacts an opaque token for log output, keeping only a short
// prefix so correlated log lines remain matchable.
func MaskToken(token string) string {
	const keep = 4
	if len(token) <= keep {
		return redactMark
	}
	return token[:keep] + redactMark
}

package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
)

// SecretBytes is the number of random bytes behind every session secret.
const SecretBytes = 64

// NewSecret returns SecretBytes of crypto randomness, base64url encoded without padding.
func NewSecret() (string, error) {
	b := make([]byte, SecretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// SecretEqual performs constant-time comparison of a presented secret with the stored one.
func SecretEqual(presented, stored string) bool {
	return subtle.ConstantTimeCompare([]byte(presented), []byte(stored)) == 1
}

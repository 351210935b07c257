// Package keyservice encrypts and decrypts small payloads under a key owned by a key-management service.
package keyservice

import (
	"context"
	"errors"
)

var (
	// ErrInvalidCiphertext is returned when a ciphertext is malformed, tampered with, or sealed under another key.
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	// ErrUnavailable is returned when the key service cannot be reached or refuses the request.
	ErrUnavailable = errors.New("key service unavailable")
)

// KeyService seals and opens payloads. Implementations are safe for concurrent use.
type KeyService interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

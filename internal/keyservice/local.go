package keyservice

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"dcv-session-gateway/internal/security"
)

const (
	envelopeVersion  = 1
	keyNonceSize     = 12
	dataKeySize      = chacha20poly1305.KeySize
	wrappedKeySize   = dataKeySize + 16
	headerSize       = 1 + keyNonceSize + wrappedKeySize
	payloadNonceSize = chacha20poly1305.NonceSizeX
)

// LocalEnvelope is an in-process envelope key service. Each message gets a fresh data key that seals
// the payload with XChaCha20-Poly1305; the data key is wrapped with AES-256-GCM under the master key.
//
// Layout: version(1) | keyNonce(12) | wrappedKey(48) | nonce(24) | ciphertext. The header is bound as AAD.
type LocalEnvelope struct {
	master cipher.AEAD
}

// NewLocalEnvelope returns a LocalEnvelope for a security.MasterKeySize-byte master key.
func NewLocalEnvelope(masterKey []byte) (*LocalEnvelope, error) {
	if len(masterKey) != security.MasterKeySize {
		return nil, security.ErrInvalidKey
	}
	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, fmt.Errorf("master cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("master gcm: %w", err)
	}
	return &LocalEnvelope{master: gcm}, nil
}

// Encrypt seals plaintext under a fresh data key.
func (e *LocalEnvelope) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	dataKey := make([]byte, dataKeySize)
	if _, err := rand.Read(dataKey); err != nil {
		return nil, fmt.Errorf("%w: data key: %v", ErrUnavailable, err)
	}
	keyNonce := make([]byte, keyNonceSize)
	if _, err := rand.Read(keyNonce); err != nil {
		return nil, fmt.Errorf("%w: key nonce: %v", ErrUnavailable, err)
	}

	out := make([]byte, 0, headerSize+payloadNonceSize+len(plaintext)+chacha20poly1305.Overhead)
	out = append(out, envelopeVersion)
	out = append(out, keyNonce...)
	out = e.master.Seal(out, keyNonce, dataKey, []byte{envelopeVersion})

	aead, err := chacha20poly1305.NewX(dataKey)
	if err != nil {
		return nil, fmt.Errorf("%w: payload cipher: %v", ErrUnavailable, err)
	}
	nonce := make([]byte, payloadNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("%w: payload nonce: %v", ErrUnavailable, err)
	}
	header := out[:headerSize]
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, header), nil
}

// Decrypt unwraps the data key and opens the payload. Any structural or authentication failure is ErrInvalidCiphertext.
func (e *LocalEnvelope) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < headerSize+payloadNonceSize+chacha20poly1305.Overhead {
		return nil, fmt.Errorf("%w: too short", ErrInvalidCiphertext)
	}
	if ciphertext[0] != envelopeVersion {
		return nil, fmt.Errorf("%w: unknown version %d", ErrInvalidCiphertext, ciphertext[0])
	}
	keyNonce := ciphertext[1 : 1+keyNonceSize]
	wrapped := ciphertext[1+keyNonceSize : headerSize]
	dataKey, err := e.master.Open(nil, keyNonce, wrapped, []byte{envelopeVersion})
	if err != nil {
		return nil, fmt.Errorf("%w: unwrap data key", ErrInvalidCiphertext)
	}

	aead, err := chacha20poly1305.NewX(dataKey)
	if err != nil {
		return nil, fmt.Errorf("%w: payload cipher", ErrInvalidCiphertext)
	}
	nonce := ciphertext[headerSize : headerSize+payloadNonceSize]
	plaintext, err := aead.Open(nil, nonce, ciphertext[headerSize+payloadNonceSize:], ciphertext[:headerSize])
	if err != nil {
		return nil, fmt.Errorf("%w: open payload", ErrInvalidCiphertext)
	}
	return plaintext, nil
}

var _ KeyService = (*LocalEnvelope)(nil)

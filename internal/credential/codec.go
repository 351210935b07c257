// Package credential turns a (session id, secret) pair into the opaque token handed to clients and back.
// It is the only package that sees raw key-service ciphertext.
package credential

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"dcv-session-gateway/internal/keyservice"
)

// ErrCrypto is returned for every decode failure: bad base64, bad ciphertext, unreachable key service, or bad payload.
var ErrCrypto = errors.New("credential crypto failure")

// Credential is the payload sealed inside a token.
type Credential struct {
	SessionID string `json:"session_id"`
	Secret    string `json:"secret"`
}

// Codec encodes and decodes tokens using a key service.
type Codec struct {
	keys keyservice.KeyService
}

// NewCodec returns a Codec over keys.
func NewCodec(keys keyservice.KeyService) *Codec {
	return &Codec{keys: keys}
}

// Encode seals c and returns it as padded base64url.
func (c *Codec) Encode(ctx context.Context, cred Credential) (string, error) {
	payload, err := json.Marshal(cred)
	if err != nil {
		return "", fmt.Errorf("%w: marshal: %v", ErrCrypto, err)
	}
	blob, err := c.keys.Encrypt(ctx, payload)
	if err != nil {
		return "", fmt.Errorf("%w: encrypt: %w", ErrCrypto, err)
	}
	return base64.URLEncoding.EncodeToString(blob), nil
}

// Decode reverses Encode. Padding on the token is optional.
func (c *Codec) Decode(ctx context.Context, token string) (Credential, error) {
	token = strings.TrimRight(strings.TrimSpace(token), "=")
	if token == "" {
		return Credential{}, fmt.Errorf("%w: empty token", ErrCrypto)
	}
	blob, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: base64: %v", ErrCrypto, err)
	}
	payload, err := c.keys.Decrypt(ctx, blob)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: decrypt: %w", ErrCrypto, err)
	}
	var cred Credential
	if err := json.Unmarshal(payload, &cred); err != nil {
		return Credential{}, fmt.Errorf("%w: payload: %v", ErrCrypto, err)
	}
	if cred.SessionID == "" || cred.Secret == "" {
		return Credential{}, fmt.Errorf("%w: payload missing fields", ErrCrypto)
	}
	return cred, nil
}

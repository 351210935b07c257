package credential

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"dcv-session-gateway/internal/keyservice"
	"dcv-session-gateway/internal/security"
)

func newTestKeys(t *testing.T) *keyservice.LocalEnvelope {
	t.Helper()
	keys, err := keyservice.NewLocalEnvelope(bytes.Repeat([]byte{7}, 32))
	if err != nil {
		t.Fatalf("NewLocalEnvelope: %v", err)
	}
	return keys
}

func TestCodec_RoundTrip(t *testing.T) {
	c := NewCodec(newTestKeys(t))
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		secret, err := security.NewSecret()
		if err != nil {
			t.Fatalf("NewSecret: %v", err)
		}
		in := Credential{SessionID: uuid.New().String(), Secret: secret}

		token, err := c.Encode(ctx, in)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		if strings.Contains(token, secret) {
			t.Error("token must not contain the secret in clear")
		}
		if strings.ContainsAny(token, "+/") {
			t.Errorf("token %q is not base64url", token)
		}

		out, err := c.Decode(ctx, token)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if out != in {
			t.Errorf("Decode = %+v, want %+v", out, in)
		}

		unpadded, err := c.Decode(ctx, strings.TrimRight(token, "="))
		if err != nil {
			t.Fatalf("Decode unpadded: %v", err)
		}
		if unpadded != in {
			t.Errorf("Decode unpadded = %+v, want %+v", unpadded, in)
		}
	}
}

func TestCodec_DecodeFailures(t *testing.T) {
	keys := newTestKeys(t)
	c := NewCodec(keys)
	ctx := context.Background()
	good, err := c.Encode(ctx, Credential{SessionID: "s", Secret: "x"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	raw, err := base64.URLEncoding.DecodeString(good)
	if err != nil {
		t.Fatalf("decode token: %v", err)
	}
	raw[len(raw)-1] ^= 0xff
	tampered := base64.URLEncoding.EncodeToString(raw)

	notJSON, err := keys.Encrypt(ctx, []byte("not json"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	missing, err := keys.Encrypt(ctx, []byte(`{"session_id":"s"}`))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	testCases := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"padding only", "=="},
		{"bad base64", "!!!not-base64!!!"},
		{"tampered", tampered},
		{"not json", base64.URLEncoding.EncodeToString(notJSON)},
		{"missing secret", base64.URLEncoding.EncodeToString(missing)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := c.Decode(ctx, tc.token); !errors.Is(err, ErrCrypto) {
				t.Errorf("Decode err = %v, want ErrCrypto", err)
			}
		})
	}
}

type unavailableKeys struct{}

func (unavailableKeys) Encrypt(context.Context, []byte) ([]byte, error) {
	return nil, keyservice.ErrUnavailable
}

func (unavailableKeys) Decrypt(context.Context, []byte) ([]byte, error) {
	return nil, keyservice.ErrUnavailable
}

func TestCodec_KeyServiceUnavailable(t *testing.T) {
	c := NewCodec(unavailableKeys{})
	_, err := c.Encode(context.Background(), Credential{SessionID: "s", Secret: "x"})
	if !errors.Is(err, ErrCrypto) || !errors.Is(err, keyservice.ErrUnavailable) {
		t.Errorf("Encode err = %v, want ErrCrypto wrapping ErrUnavailable", err)
	}

	_, err = c.Decode(context.Background(), base64.URLEncoding.EncodeToString([]byte("blob")))
	if !errors.Is(err, ErrCrypto) || !errors.Is(err, keyservice.ErrUnavailable) {
		t.Errorf("Decode err = %v, want ErrCrypto wrapping ErrUnavailable", err)
	}
}

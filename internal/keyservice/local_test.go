package keyservice

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func newTestEnvelope(t *testing.T, fill byte) *LocalEnvelope {
	t.Helper()
	e, err := NewLocalEnvelope(bytes.Repeat([]byte{fill}, 32))
	if err != nil {
		t.Fatalf("NewLocalEnvelope: %v", err)
	}
	return e
}

func TestLocalEnvelope_RoundTrip(t *testing.T) {
	e := newTestEnvelope(t, 1)
	ctx := context.Background()

	for _, msg := range [][]byte{[]byte(`{"session_id":"s","secret":"x"}`), {}, bytes.Repeat([]byte("a"), 4096)} {
		ct, err := e.Encrypt(ctx, msg)
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		pt, err := e.Decrypt(ctx, ct)
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		if !bytes.Equal(pt, msg) {
			t.Errorf("Decrypt = %q, want %q", pt, msg)
		}
	}
}

func TestLocalEnvelope_FreshDataKeyPerMessage(t *testing.T) {
	e := newTestEnvelope(t, 1)
	a, err := e.Encrypt(context.Background(), []byte("same"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	b, err := e.Encrypt(context.Background(), []byte("same"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Error("two encryptions of the same payload should differ")
	}
}

func TestLocalEnvelope_Rejects(t *testing.T) {
	e := newTestEnvelope(t, 1)
	ctx := context.Background()
	ct, err := e.Encrypt(ctx, []byte("payload"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	flip := func(i int) []byte {
		c := append([]byte{}, ct...)
		c[i] ^= 0x01
		return c
	}

	testCases := []struct {
		name string
		in   []byte
	}{
		{"empty", nil},
		{"truncated", ct[:headerSize+payloadNonceSize]},
		{"version", flip(0)},
		{"wrapped key", flip(1 + keyNonceSize + 3)},
		{"nonce", flip(headerSize + 2)},
		{"ciphertext", flip(len(ct) - 1)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := e.Decrypt(ctx, tc.in); !errors.Is(err, ErrInvalidCiphertext) {
				t.Errorf("Decrypt err = %v, want ErrInvalidCiphertext", err)
			}
		})
	}

	other := newTestEnvelope(t, 2)
	if _, err := other.Decrypt(ctx, ct); !errors.Is(err, ErrInvalidCiphertext) {
		t.Errorf("Decrypt under another master key err = %v, want ErrInvalidCiphertext", err)
	}
}

func TestNewLocalEnvelope_KeySize(t *testing.T) {
	if _, err := NewLocalEnvelope([]byte("short")); err == nil {
		t.Error("NewLocalEnvelope should reject a short key")
	}
}

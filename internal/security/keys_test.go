package security

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func testKey() []byte {
	return bytes.Repeat([]byte{0x5a}, MasterKeySize)
}

func TestParseMasterKey_Inline(t *testing.T) {
	key := testKey()
	testCases := []struct {
		name  string
		input string
	}{
		{"hex", hex.EncodeToString(key)},
		{"base64", base64.StdEncoding.EncodeToString(key)},
		{"base64url raw", base64.RawURLEncoding.EncodeToString(key)},
		{"surrounding whitespace", "  " + hex.EncodeToString(key) + "\n"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseMasterKey(tc.input)
			if err != nil {
				t.Fatalf("ParseMasterKey: %v", err)
			}
			if !bytes.Equal(got, key) {
				t.Errorf("key mismatch")
			}
		})
	}
}

func TestParseMasterKey_File(t *testing.T) {
	key := testKey()
	path := filepath.Join(t.TempDir(), "master.key")
	if err := os.WriteFile(path, []byte(hex.EncodeToString(key)+"\n"), 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}
	got, err := ParseMasterKey(path)
	if err != nil {
		t.Fatalf("ParseMasterKey(file): %v", err)
	}
	if !bytes.Equal(got, key) {
		t.Errorf("key mismatch")
	}
}

func TestParseMasterKey_Invalid(t *testing.T) {
	if _, err := ParseMasterKey(""); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("empty: err = %v, want ErrInvalidKey", err)
	}
	if _, err := ParseMasterKey(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("missing file should fail")
	}

	path := filepath.Join(t.TempDir(), "short.key")
	if err := os.WriteFile(path, []byte("abcd"), 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}
	if _, err := ParseMasterKey(path); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("short key: err = %v, want ErrInvalidKey", err)
	}
}

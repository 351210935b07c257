package security

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"os"
	"strings"
)

// MasterKeySize is the length of an AES-256 master key.
const MasterKeySize = 32

// ErrInvalidKey is returned when key material is missing or not MasterKeySize bytes.
var ErrInvalidKey = errors.New("invalid key")

// LoadKeyMaterial returns s trimmed when it looks like inline key material; otherwise reads s as a file path.
func LoadKeyMaterial(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrInvalidKey
	}
	if _, err := decodeKey(s); err == nil {
		return s, nil
	}
	b, err := os.ReadFile(s)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// ParseMasterKey parses a hex or base64 (std or url) encoded MasterKeySize-byte key. s may be inline or a file path.
func ParseMasterKey(s string) ([]byte, error) {
	material, err := LoadKeyMaterial(s)
	if err != nil {
		return nil, err
	}
	return decodeKey(material)
}

func decodeKey(s string) ([]byte, error) {
	if b, err := hex.DecodeString(s); err == nil && len(b) == MasterKeySize {
		return b, nil
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(s); err == nil && len(b) == MasterKeySize {
			return b, nil
		}
	}
	return nil, ErrInvalidKey
}

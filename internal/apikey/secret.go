package apikey

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
)

const (
	// SecretPrefix identifies registry API keys.
	SecretPrefix = "nk_"
	secretBytes  = 32
	// prefixLen and suffixLen are the plaintext fragments kept for lookup and display.
	prefixLen = 8
	suffixLen = 4
)

// generateSecret returns a new key of the form nk_<base64url(32 random bytes)>.
func generateSecret() (string, error) {
	b := make([]byte, secretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return SecretPrefix + base64.RawURLEncoding.EncodeToString(b), nil
}

// wellFormed reports whether raw looks like a key this package issued.
func wellFormed(raw string) bool {
	if !strings.HasPrefix(raw, SecretPrefix) {
		return false
	}
	body := strings.TrimPrefix(raw, SecretPrefix)
	if len(body) == 0 {
		return false
	}
	decoded, err := base64.RawURLEncoding.DecodeString(body)
	return err == nil && len(decoded) == secretBytes
}

func prefixOf(raw string) string { return raw[:prefixLen] }

func suffixOf(raw string) string { return raw[len(raw)-suffixLen:] }

package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// tokenBytes is the entropy of session ids and CSRF tokens.
const tokenBytes = 32

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func newSessionID() (string, error) { return randomHex(tokenBytes) }

func newCSRFToken() (string, error) { return randomHex(tokenBytes) }

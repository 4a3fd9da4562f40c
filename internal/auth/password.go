package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/nekonik/registry/internal/apperr"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLen = 8
	maxPasswordLen = 128
)

// Hasher hashes and verifies base64-encoded passwords with bcrypt.
//
// The decoded bytes are reduced to base64(sha256(raw)) before bcrypt sees
// them, so every input fits bcrypt's 72-byte limit and no suffix is ignored.
type Hasher struct {
	cost      int
	dummyHash []byte
}

// NewHasher returns a Hasher using cost, or bcrypt.DefaultCost if cost is out of range.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	h := &Hasher{cost: cost}
	// Compared against for unknown users.
	h.dummyHash, _ = bcrypt.GenerateFromPassword(prehash([]byte("registry-dummy-password")), cost)
	return h
}

// HashPassword validates and decodes encoded, then returns a salted bcrypt hash.
func (h *Hasher) HashPassword(encoded string) (string, error) {
	raw, err := DecodePassword(encoded)
	if err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword(prehash(raw), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether encoded matches hash. A mismatch is (false, nil);
// malformed input or a corrupt stored hash is (false, err).
func (h *Hasher) VerifyPassword(encoded, hash string) (bool, error) {
	raw, err := DecodePassword(encoded)
	if err != nil {
		return false, err
	}
	err = bcrypt.CompareHashAndPassword([]byte(hash), prehash(raw))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("compare password hash: %w", err)
	}
	return true, nil
}

// burnCompare spends one bcrypt comparison's worth of time and always fails.
func (h *Hasher) burnCompare(encoded string) {
	raw, err := DecodePassword(encoded)
	if err != nil {
		raw = []byte(encoded)
	}
	_ = bcrypt.CompareHashAndPassword(h.dummyHash, prehash(raw))
}

// DecodePassword checks the encoded password's shape and returns the raw bytes.
func DecodePassword(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, apperr.Validation("password is required")
	}
	if len(encoded) < minPasswordLen || len(encoded) > maxPasswordLen {
		return nil, apperr.Validation(fmt.Sprintf("password must be between %d and %d characters", minPasswordLen, maxPasswordLen))
	}
	for i := 0; i < len(encoded); i++ {
		if c := encoded[i]; c < 0x20 || c > 0x7e {
			return nil, apperr.Validation("password must contain only printable ASCII characters")
		}
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, apperr.Validation("password must be valid base64")
	}
	return raw, nil
}

func prehash(raw []byte) []byte {
	sum := sha256.Sum256(raw)
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}

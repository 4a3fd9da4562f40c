package models

import (
	"time"

	"github.com/google/uuid"
)

// APIKey is a long-lived programmatic credential owned by one user.
// The raw secret is shown once at creation; only the bcrypt hash is stored.
type APIKey struct {
	ID          uuid.UUID  `db:"id"           json:"id"`
	UserID      uuid.UUID  `db:"user_id"      json:"user_id"`
	Name        string     `db:"name"         json:"name"`
	Description string     `db:"description"  json:"description"`
	KeyHash     string     `db:"key_hash"     json:"-"`
	KeyPrefix   string     `db:"key_prefix"   json:"-"`
	KeySuffix   string     `db:"key_suffix"   json:"-"`
	LastUsedAt  *time.Time `db:"last_used_at" json:"last_used_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at"   json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"   json:"updated_at"`
}

// Redacted returns the display form of the key: the first four characters,
// a fixed mask, and the last four.
func (k *APIKey) Redacted() string {
	head := k.KeyPrefix
	if len(head) > 4 {
		head = head[:4]
	}
	return head + "****************" + k.KeySuffix
}

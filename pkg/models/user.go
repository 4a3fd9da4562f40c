package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a registry account. HashedPassword never leaves the server.
type User struct {
	ID             uuid.UUID      `db:"id"              json:"id"`
	UserName       string         `db:"user_name"       json:"user_name"`
	Email          string         `db:"email"           json:"email"`
	HashedPassword string         `db:"hashed_password" json:"-"`
	ProfileData    map[string]any `db:"profile_data"    json:"profile_data"`
	IsActive       bool           `db:"is_active"       json:"is_active"`
	CreatedAt      time.Time      `db:"created_at"      json:"created_at"`
}

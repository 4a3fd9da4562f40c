package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is the cached record of an authenticated login, keyed by ID.
type Session struct {
	ID            string         `json:"session_id"`
	UserID        uuid.UUID      `json:"user_id"`
	UserName      string         `json:"user_name"`
	Email         string         `json:"email"`
	ProfileData   map[string]any `json:"profile_data"`
	CSRFToken     string         `json:"csrf_token"`
	IsActive      bool           `json:"is_active"`
	UserCreatedAt string         `json:"user_created_at"`
	ExpiresAt     time.Time      `json:"expires_at"`
}

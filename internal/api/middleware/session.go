package middleware

import (
	"context"
	"net/http"

	"github.com/nekonik/registry/internal/api/response"
	"github.com/nekonik/registry/pkg/models"
)

// Cookie and header names shared by the session endpoints.
const (
	SessionCookie       = "SESSION_ID"
	SessionValidCookie  = "IS_SESSION_VALID"
	CSRFHeader          = "X-CSRF-Token"
	SessionExpiryHeader = "X-Session-Expiry"
)

// SessionValidator checks a session id and CSRF token pair.
type SessionValidator interface {
	ValidateSession(ctx context.Context, sessionID, csrf string) (*models.Session, error)
}

// Sessions gates routes on a valid session cookie plus matching CSRF header.
type Sessions struct {
	validator SessionValidator
}

func NewSessions(v SessionValidator) *Sessions {
	return &Sessions{validator: v}
}

// RequireSession validates the caller's session on every request and stores
// the record in the request context.
func (s *Sessions) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.validator.ValidateSession(r.Context(), SessionIDFromRequest(r), r.Header.Get(CSRFHeader))
		if err != nil {
			response.FromError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(SetSession(r.Context(), sess)))
	})
}

// SessionIDFromRequest returns the SESSION_ID cookie value, or "".
func SessionIDFromRequest(r *http.Request) string {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

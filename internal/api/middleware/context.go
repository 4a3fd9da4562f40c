package middleware

import (
	"context"
	"net/http"

	"github.com/nekonik/registry/internal/apikey"
	"github.com/nekonik/registry/pkg/models"
)

type contextKey string

const (
	sessionKey   contextKey = "session"
	principalKey contextKey = "api_key_principal"
	keyPrefixKey contextKey = "key_prefix"
)

func SetSession(ctx context.Context, s *models.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// GetSession returns the session placed by RequireSession.
func GetSession(r *http.Request) (*models.Session, bool) {
	s, ok := r.Context().Value(sessionKey).(*models.Session)
	return s, ok && s != nil
}

func SetPrincipal(ctx context.Context, p *apikey.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// GetPrincipal returns the API key identity placed by APIKeyAuth.
func GetPrincipal(r *http.Request) (*apikey.Principal, bool) {
	p, ok := r.Context().Value(principalKey).(*apikey.Principal)
	return p, ok && p != nil
}

func setKeyPrefix(ctx context.Context, prefix string) context.Context {
	return context.WithValue(ctx, keyPrefixKey, prefix)
}

func getKeyPrefix(r *http.Request) (string, bool) {
	prefix, ok := r.Context().Value(keyPrefixKey).(string)
	return prefix, ok
}

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/nekonik/registry/internal/api/response"
	"github.com/nekonik/registry/internal/apikey"
	"github.com/nekonik/registry/internal/apperr"
)

const apiKeyHeader = "X-API-Key"

const keyPrefixLen = 8

// Authenticator resolves a raw API key to its owner.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (*apikey.Principal, error)
}

// APIKeyAuth authenticates programmatic callers by API key.
type APIKeyAuth struct {
	keys Authenticator
}

func NewAPIKeyAuth(a Authenticator) *APIKeyAuth {
	return &APIKeyAuth{keys: a}
}

// Authenticate accepts the key from "Authorization: Bearer" or X-API-Key and
// sets the principal and key prefix in the request context.
func (a *APIKeyAuth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawKey := extractAPIKey(r)
		if rawKey == "" {
			response.FromError(w, r, apperr.Auth("missing api key"))
			return
		}

		p, err := a.keys.Authenticate(r.Context(), rawKey)
		if err != nil {
			response.FromError(w, r, err)
			return
		}

		ctx := SetPrincipal(r.Context(), p)
		if len(rawKey) >= keyPrefixLen {
			ctx = setKeyPrefix(ctx, rawKey[:keyPrefixLen])
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractAPIKey(r *http.Request) string {
	if key := extractBearerToken(r); key != "" {
		return key
	}
	return strings.TrimSpace(r.Header.Get(apiKeyHeader))
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

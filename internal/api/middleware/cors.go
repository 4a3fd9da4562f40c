package middleware

import (
	"net/http"
	"strings"
)

// CORS allows credentialed requests from allowedOrigin and exposes the
// session headers to scripts. An empty origin sends no Allow-Origin header.
func CORS(allowedOrigin string) func(http.Handler) http.Handler {
	exposed := strings.Join([]string{CSRFHeader, SessionExpiryHeader}, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if allowedOrigin != "" {
				h.Set("Access-Control-Allow-Origin", allowedOrigin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Add("Vary", "Origin")
			}
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+CSRFHeader+", "+apiKeyHeader)
			h.Set("Access-Control-Expose-Headers", exposed)
			h.Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

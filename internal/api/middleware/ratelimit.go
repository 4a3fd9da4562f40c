package middleware

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/nekonik/registry/internal/api/response"
	"github.com/nekonik/registry/internal/cache"
)

const (
	defaultRequestsPerMinute = 60
	rateWindow               = 60 * time.Second
)

// RateLimit provides fixed-window rate limiting via Redis.
type RateLimit struct {
	cache          cache.Cache
	requestsPerMin int
}

// NewRateLimit creates a new RateLimit middleware.
func NewRateLimit(c cache.Cache, requestsPerMin int) *RateLimit {
	if requestsPerMin <= 0 {
		requestsPerMin = defaultRequestsPerMinute
	}
	return &RateLimit{cache: c, requestsPerMin: requestsPerMin}
}

// ByIP limits requests per client address.
func (rl *RateLimit) ByIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rl.limit(w, r, next, cache.RateLimitKey("ip", ClientIP(r)))
	})
}

// ByKeyPrefix limits requests per API key, using the prefix set by APIKeyAuth.
func (rl *RateLimit) ByKeyPrefix(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prefix, ok := getKeyPrefix(r)
		if !ok {
			// No key prefix means auth middleware didn't run; pass through
			next.ServeHTTP(w, r)
			return
		}
		rl.limit(w, r, next, cache.RateLimitKey("apikey", prefix))
	})
}

func (rl *RateLimit) limit(w http.ResponseWriter, r *http.Request, next http.Handler, key string) {
	count, err := rl.cache.IncrWithExpiry(r.Context(), key, rateWindow)
	if err != nil {
		// On Redis error, allow the request (fail open)
		next.ServeHTTP(w, r)
		return
	}

	remaining := max(rl.requestsPerMin-int(count), 0)
	resetTime := time.Now().Add(rateWindow).Unix()

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.requestsPerMin))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetTime, 10))

	if count > int64(rl.requestsPerMin) {
		w.Header().Set("Retry-After", "60")
		response.Error(w, http.StatusTooManyRequests,
			"RATE_LIMIT_EXCEEDED", "Too many requests", nil)
		return
	}

	next.ServeHTTP(w, r)
}

// ClientIP returns the host part of r.RemoteAddr. Forwarding headers are
// ignored since any caller can set them.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

package cache

import "fmt"

func SessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

// RateLimitKey namespaces a fixed-window counter by what is being limited,
// e.g. "ip" or "apikey".
func RateLimitKey(scope, subject string) string {
	return fmt.Sprintf("ratelimit:%s:%s", scope, subject)
}

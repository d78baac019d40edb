package middleware

import (
	"net"
	"net/http"

	"github.com/atlasops/backoffice/internal/ratelimit"
)

// RateLimit returns middleware that rejects requests from IPs exceeding
// the limiter's allowance. It expects RealIP to have run earlier in the
// chain.
func RateLimit(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := r.RemoteAddr
			if host, _, err := net.SplitHostPort(ip); err == nil {
				ip = host
			}

			if !limiter.Allow(ip) {
				writeError(w, http.StatusTooManyRequests, "too many requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

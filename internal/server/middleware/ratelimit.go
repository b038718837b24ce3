package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/evoltmarket/auctiond/internal/domain"
)

// RateLimit bounds requests per client IP using the shared limiter. A failing
// limiter lets requests through rather than taking the API down with it.
func RateLimit(limiter domain.RateLimiter, limit int, window time.Duration, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil || limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			ip := clientIP(r)
			allowed, err := limiter.Allow(r.Context(), "http:"+ip, limit, window)
			if err != nil {
				log.Warn("rate limiter unavailable", "ip", ip, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				w.Header().Set("Retry-After", "60")
				http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

package ratelimit

import (
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/hongminglow/medimate-be/internal/http/respond"
)

// ByIP limits requests per client IP. A nil limiter disables the check.
// Run chi's RealIP middleware first so RemoteAddr reflects the client.
func ByIP(l *Limiter, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			retryAfter, err := l.Allow(r.Context(), clientIP(r))
			switch {
			case err == nil:
			case errors.Is(err, ErrRateLimited):
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
				respond.Error(w, http.StatusTooManyRequests, "too many requests, please try again later")
				return
			default:
				logger.Warn("rate limiter unavailable, allowing request", zap.Error(err))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

package middleware

import (
	"net/http"
	"strconv"

	"github.com/merchkit/merchkit/internal/logger"
	"github.com/merchkit/merchkit/internal/ratelimit"
)

// CheckoutRateLimit bounds checkout-session creation per buyer IP using
// the Redis-backed manager. Checkout is the only endpoint that spends
// money-adjacent processor quota, so it gets its own window separate from
// the generic per-IP limiter. If the manager is nil the middleware no-ops.
func CheckoutRateLimit(m *ratelimit.Manager, perMinute int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m == nil || perMinute <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			allowed, reset, err := m.CheckRate(r.Context(), clientIP(r), perMinute)
			if err != nil {
				// Redis trouble must not take checkout down; let the
				// request through and log.
				logger.WithContext(r.Context()).Warn("Checkout rate limiter unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(reset))
				write429(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

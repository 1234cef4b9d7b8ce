package middleware

import (
	"net/http"

	"github.com/benbjohnson/clock"
	"go.uber.org/ratelimit"
)

// NewLimiter creates a leaky bucket limiter allowing rps requests per second. A non-positive
// rps yields a limiter that never waits. A nil clock uses the real clock.
func NewLimiter(rps int, clk clock.Clock) ratelimit.Limiter {
	if rps <= 0 {
		return ratelimit.NewUnlimited()
	}
	if clk == nil {
		clk = clock.New()
	}
	return ratelimit.New(rps, ratelimit.WithClock(clk))
}

// Throttle is a middleware that paces requests through limiter. Each request waits for its
// slot before continuing, so bursts are smoothed rather than rejected.
func Throttle(limiter ratelimit.Limiter) Middleware {
	if limiter == nil {
		limiter = ratelimit.NewUnlimited()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter.Take()
			next.ServeHTTP(w, r)
		})
	}
}

// SPDX-License-Identifier: MIT

package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimitPerMinute limits each client IP to limit requests per minute using
// a sliding window counter.
func RateLimitPerMinute(limit int) func(http.Handler) http.Handler {
	window := time.Minute
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"detail":"too many requests, please try again later"}`))
		}),
	)
}

// ExtractionRateLimit guards the expensive provider-backed endpoints: each
// call forks an external extraction process, so the per-IP budget stays small.
func ExtractionRateLimit() func(http.Handler) http.Handler {
	return RateLimitPerMinute(20)
}

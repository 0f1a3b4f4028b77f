// Package ratelimit provides sliding-window admission control keyed by
// client identity, with pluggable counting backends: an in-process map for
// single-instance deployments and Redis for shared, multi-instance ones.
package ratelimit

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/elicit-dev/elicit/internal/logging"
)

// Defaults match the chat endpoint's admission policy.
const (
	DefaultMaxRequests = 20
	DefaultWindow      = 60 * time.Second
)

// Result is the outcome of an admission check.
type Result struct {
	OK         bool
	RetryAfter time.Duration // time until the window resets; zero when allowed
}

// Store counts requests per identifier within a window. Incr increments the
// identifier's counter, creating or resetting the entry when its window has
// elapsed, and returns the post-increment count plus the time remaining
// until reset. Implementations own their atomicity: the map store relies on
// its mutex, the Redis store on the server's atomic INCR.
type Store interface {
	Incr(ctx context.Context, identifier string, window time.Duration) (count int64, remaining time.Duration, err error)
}

// Limiter applies a max-requests-per-window policy over a Store. Construct
// one per process and inject it where needed; there is no package-level
// singleton.
type Limiter struct {
	store  Store
	max    int64
	window time.Duration
	log    *logging.Logger
}

// New creates a limiter. Zero max or window select the defaults.
func New(store Store, maxRequests int, window time.Duration, log *logging.Logger) *Limiter {
	if maxRequests <= 0 {
		maxRequests = DefaultMaxRequests
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		store:  store,
		max:    int64(maxRequests),
		window: window,
		log:    log.Sub("ratelimit"),
	}
}

// Check admits or denies one request for the identifier. The first request
// for a fresh or expired identifier always passes; once the window's count
// exceeds the maximum, requests are denied with the time left until reset.
// A failing backend fails open: admission control should not take the
// service down with it.
func (l *Limiter) Check(ctx context.Context, identifier string) Result {
	count, remaining, err := l.store.Incr(ctx, identifier, l.window)
	if err != nil {
		l.log.Warn().Err(err).Str("identifier", identifier).Msg("rate limit store unavailable, allowing request")
		return Result{OK: true}
	}
	if count <= l.max {
		return Result{OK: true}
	}
	if remaining < 0 {
		remaining = 0
	}
	return Result{OK: false, RetryAfter: remaining}
}

// ClientIdentifier derives the rate-limit key for a request: the first
// X-Forwarded-For entry, then X-Real-IP, else a shared "unknown" bucket.
// Unidentifiable clients throttling each other is accepted degraded
// behavior.
func ClientIdentifier(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	return "unknown"
}

package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"issuebridge/internal/observability"
)

// RateLimiter implements per-caller sliding window rate limiting.
// Callers are keyed by token subject, or by remote host for anonymous requests.
// State is in-memory; each server instance enforces independently.
type RateLimiter struct {
	maxRequests int
	window      time.Duration
	mu          sync.Mutex
	callers     map[string]*callerWindow
}

type callerWindow struct {
	timestamps []time.Time
	lastAccess time.Time
}

// NewRateLimiter creates a rate limiter with the given requests-per-second
// limit. Stale callers are evicted until ctx is done.
func NewRateLimiter(ctx context.Context, maxPerSecond int) *RateLimiter {
	rl := &RateLimiter{
		maxRequests: maxPerSecond,
		window:      time.Second,
		callers:     make(map[string]*callerWindow),
	}
	go rl.cleanup(ctx, 60*time.Second, 5*time.Minute)
	return rl
}

// Allow checks if a request from the given caller is allowed.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cw, ok := rl.callers[key]
	if !ok {
		cw = &callerWindow{}
		rl.callers[key] = cw
	}

	// Remove timestamps outside the window
	cutoff := now.Add(-rl.window)
	start := 0
	for start < len(cw.timestamps) && cw.timestamps[start].Before(cutoff) {
		start++
	}
	cw.timestamps = cw.timestamps[start:]
	cw.lastAccess = now

	if len(cw.timestamps) >= rl.maxRequests {
		return false
	}

	cw.timestamps = append(cw.timestamps, now)
	return true
}

func (rl *RateLimiter) cleanup(ctx context.Context, every, idle time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.evict(time.Now().Add(-idle))
		}
	}
}

func (rl *RateLimiter) evict(cutoff time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, cw := range rl.callers {
		if cw.lastAccess.Before(cutoff) {
			delete(rl.callers, key)
		}
	}
}

// Middleware returns an HTTP middleware that applies rate limiting.
// Place it after Authorize so authenticated callers are keyed by subject.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := callerKey(r)
		if !rl.Allow(key) {
			observability.LogSecurityEvent(GetRequestID(r.Context()), "rate_limited", map[string]any{
				"caller": key,
			})
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error":   "RATE_LIMIT_EXCEEDED",
				"message": "Too many requests. Please slow down.",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func callerKey(r *http.Request) string {
	if sub := GetSubject(r.Context()); sub != "" {
		return "sub:" + sub
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "addr:" + host
}

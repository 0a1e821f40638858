package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RealIP extracts the client's real IP address, preferring Cloudflare's
// CF-Connecting-IP header, then X-Forwarded-For, and falling back to RemoteAddr.
func RealIP(r *http.Request) string {
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		return ip
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// First IP in the chain is the original client
		if i := strings.IndexByte(xff, ','); i > 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type keyLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter is a token bucket per key that allows limit requests per
// window, with the whole allowance available as a burst.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*keyLimiter
	interval time.Duration
	burst    int
	now      func() time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit < 1 {
		limit = 1
	}
	return &RateLimiter{
		limiters: make(map[string]*keyLimiter),
		interval: window / time.Duration(limit),
		burst:    limit,
		now:      time.Now,
	}
}

// Allow reports whether key may make another request now.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	kl, ok := rl.limiters[key]
	if !ok {
		kl = &keyLimiter{limiter: rate.NewLimiter(rate.Every(rl.interval), rl.burst)}
		rl.limiters[key] = kl
	}
	kl.lastAccess = now
	return kl.limiter.AllowN(now, 1)
}

// Cleanup removes limiters idle for longer than maxIdle and returns how
// many were dropped.
func (rl *RateLimiter) Cleanup(maxIdle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	n := 0
	for key, kl := range rl.limiters {
		if now.Sub(kl.lastAccess) > maxIdle {
			delete(rl.limiters, key)
			n++
		}
	}
	return n
}

// Len returns the number of tracked keys.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// retryAfter is the whole number of seconds until one token refills.
func (rl *RateLimiter) retryAfter() int {
	sec := int(math.Ceil(rl.interval.Seconds()))
	if sec < 1 {
		sec = 1
	}
	return sec
}

// RateLimit returns middleware that rate-limits requests by a key function.
func RateLimit(limiter *RateLimiter, keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			if !limiter.Allow(key) {
				slog.WarnContext(r.Context(), "rate limit exceeded", "key", key, "path", r.URL.Path)
				w.Header().Set("Retry-After", strconv.Itoa(limiter.retryAfter()))
				writeError(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

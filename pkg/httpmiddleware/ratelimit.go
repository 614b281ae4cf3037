package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig configures the sliding window rate limiter.
type RateLimitConfig struct {
	// Max requests per window. Zero or negative disables limiting.
	Max int
	// Window length.
	Window time.Duration
	// KeyFunc extracts the client key, client IP by default.
	KeyFunc func(*http.Request) string
	// Exempt requests bypass the limiter, e.g. health probes.
	Exempt func(*http.Request) bool
}

// window counts requests of one key in the current and previous windows.
type window struct {
	prevCount float64
	currCount float64
	currStart time.Time
}

// Limiter is a per-key sliding window counter.
type Limiter struct {
	max  int
	size time.Duration
	now  func() time.Time

	mu   sync.Mutex
	keys map[string]*window
}

// NewLimiter creates a limiter allowing n requests per size window.
func NewLimiter(n int, size time.Duration) *Limiter {
	return &Limiter{
		max:  n,
		size: size,
		now:  time.Now,
		keys: make(map[string]*window),
	}
}

// Allow records a request for key. It reports the number of requests left in
// the window, the end of the current window and whether the request fits.
func (l *Limiter) Allow(key string) (remaining int, resetAt time.Time, ok bool) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, found := l.keys[key]
	if !found {
		w = &window{currStart: now.Truncate(l.size)}
		l.keys[key] = w
	}
	if elapsed := now.Sub(w.currStart); elapsed >= l.size {
		// Previous window counts only if it is the one right before now.
		if elapsed < 2*l.size {
			w.prevCount = w.currCount
		} else {
			w.prevCount = 0
		}
		w.currCount = 0
		w.currStart = now.Truncate(l.size)
	}

	overlap := 1 - now.Sub(w.currStart).Seconds()/l.size.Seconds()
	if overlap < 0 {
		overlap = 0
	}
	used := w.prevCount*overlap + w.currCount
	resetAt = w.currStart.Add(l.size)
	if used >= float64(l.max) {
		return 0, resetAt, false
	}

	w.currCount++
	remaining = max(int(float64(l.max)-used-1), 0)
	return remaining, resetAt, true
}

// Evict drops keys idle for two windows.
func (l *Limiter) Evict() {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, w := range l.keys {
		if now.Sub(w.currStart) >= 2*l.size {
			delete(l.keys, key)
		}
	}
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}

// RunEviction calls Evict every two windows until ctx is done.
func (l *Limiter) RunEviction(ctx context.Context) {
	ticker := time.NewTicker(2 * l.size)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Evict()
		}
	}
}

// RateLimit limits requests per client. Throttled requests get 429; every
// limited response carries X-RateLimit-* headers.
func RateLimit(cfg RateLimitConfig) Middleware {
	if cfg.Max <= 0 || cfg.Window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return limit(NewLimiter(cfg.Max, cfg.Window), cfg)
}

// RateLimitWithCleanup is RateLimit with background eviction of idle keys,
// stopped when ctx is done.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	if cfg.Max <= 0 || cfg.Window <= 0 {
		return RateLimit(cfg)
	}
	l := NewLimiter(cfg.Max, cfg.Window)
	go l.RunEviction(ctx)
	return limit(l, cfg)
}

func limit(l *Limiter, cfg RateLimitConfig) Middleware {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = ClientIP
	}
	limitHeader := strconv.Itoa(cfg.Max)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Exempt != nil && cfg.Exempt(r) {
				next.ServeHTTP(w, r)
				return
			}
			remaining, resetAt, ok := l.Allow(keyFunc(r))

			h := w.Header()
			h.Set("X-RateLimit-Limit", limitHeader)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
			if !ok {
				retry := max(time.Until(resetAt), 0)
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the first X-Forwarded-For hop, X-Real-IP or the remote
// address host, in that order.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

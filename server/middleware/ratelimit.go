package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/kbukum/pixelflow/errors"
)

// RateLimitConfig configures the rate limiting middleware.
type RateLimitConfig struct {
	// RequestsPerMinute is the number of requests allowed per minute per key.
	RequestsPerMinute int
	// MaxKeys bounds how many clients are tracked. Defaults to 10000.
	MaxKeys int
	// KeyFunc extracts the rate limit key from a request. Defaults to client IP.
	KeyFunc func(*gin.Context) string
}

// RateLimit applies a per-key sliding one minute window.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = 10000
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = IPBasedKey
	}

	rl := &rateLimiter{
		windows: expirable.NewLRU[string, *window](cfg.MaxKeys, nil, time.Minute),
		limit:   cfg.RequestsPerMinute,
		now:     time.Now,
	}
	return func(c *gin.Context) {
		if !rl.allow(cfg.KeyFunc(c)) {
			err := errors.New(errors.ErrCodeRateLimited, "rate limit exceeded", http.StatusTooManyRequests)
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(err.HTTPStatus, err.ToResponse())
			return
		}
		c.Next()
	}
}

// IPBasedKey keys requests by client IP.
func IPBasedKey(c *gin.Context) string { return c.ClientIP() }

type window struct {
	mu    sync.Mutex
	times []time.Time
}

type rateLimiter struct {
	mu      sync.Mutex
	windows *expirable.LRU[string, *window]
	limit   int
	now     func() time.Time
}

func (rl *rateLimiter) allow(key string) bool {
	rl.mu.Lock()
	w, ok := rl.windows.Get(key)
	if !ok {
		w = &window{}
	}
	// Re-adding refreshes the entry's expiry.
	rl.windows.Add(key, w)
	rl.mu.Unlock()

	w.mu.Lock()
	defer w.mu.Unlock()
	now := rl.now()
	cutoff := now.Add(-time.Minute)
	kept := w.times[:0]
	for _, t := range w.times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	w.times = kept
	if len(w.times) >= rl.limit {
		return false
	}
	w.times = append(w.times, now)
	return true
}

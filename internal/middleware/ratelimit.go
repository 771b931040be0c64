package middleware

import (
	"sync"
	"time"

	"github.com/patchwell/linkstash/internal/pkg/errcode"
	"github.com/patchwell/linkstash/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type rateBucket struct {
	count   int
	resetAt time.Time
}

type rateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rateBucket
	limit   int
	window  time.Duration
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		buckets: make(map[string]*rateBucket),
		limit:   limit,
		window:  window,
	}
}

func (r *rateLimiter) allow(key string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.buckets[key]
	if !ok || now.After(b.resetAt) {
		r.buckets[key] = &rateBucket{count: 1, resetAt: now.Add(r.window)}
		return true
	}
	if b.count >= r.limit {
		return false
	}
	b.count++
	return true
}

func (r *rateLimiter) sweep(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, b := range r.buckets {
		if now.After(b.resetAt) {
			delete(r.buckets, key)
		}
	}
}

// RateLimit caps requests per client IP inside a sliding window. Stale
// buckets are swept in the background until the limiter is garbage
// collected with the engine.
func RateLimit(limit int, window time.Duration) gin.HandlerFunc {
	limiter := newRateLimiter(limit, window)
	go func() {
		ticker := time.NewTicker(window)
		defer ticker.Stop()
		for now := range ticker.C {
			limiter.sweep(now)
		}
	}()
	return func(c *gin.Context) {
		if !limiter.allow(c.ClientIP(), time.Now()) {
			response.Error(c, errcode.ErrTooMany, "too many requests")
			c.Abort()
			return
		}
		c.Next()
	}
}

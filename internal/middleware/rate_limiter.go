package middleware

import (
	"net/http"
	"sync"
	"time"

	"cashregister/internal/apierror"

	"github.com/gin-gonic/gin"
)

// rateWindow tracks request counts for one client within a fixed window.
type rateWindow struct {
	count int
	end   time.Time
}

// RateLimiter is a per-client fixed-window limiter keyed by client IP.
type RateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu        sync.Mutex
	clients   map[string]*rateWindow
	lastPurge time.Time
}

// NewRateLimiter allows limit requests per window for each client IP.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		clients: make(map[string]*rateWindow),
	}
}

// Allow records a request from key and reports whether it is within the
// limit, plus the end of the current window.
func (l *RateLimiter) Allow(key string) (bool, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	// Expired windows are purged lazily, at most once per window.
	if now.Sub(l.lastPurge) > l.window {
		for k, w := range l.clients {
			if now.After(w.end) {
				delete(l.clients, k)
			}
		}
		l.lastPurge = now
	}

	w, ok := l.clients[key]
	if !ok || now.After(w.end) {
		w = &rateWindow{end: now.Add(l.window)}
		l.clients[key] = w
	}
	w.count++
	return w.count <= l.limit, w.end
}

// Middleware returns the gin handler enforcing the limit.
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, end := l.Allow(c.ClientIP())
		if !ok {
			c.Header("Retry-After", end.UTC().Format(http.TimeFormat))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New("too many requests, try again shortly"))
			return
		}
		c.Next()
	}
}

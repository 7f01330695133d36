// Package ratelimit implements fixed-window request limits per key.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Limiter implementations treat a limit of zero or less as disabled and allow everything.
type Limiter interface {
	// Allow counts one hit for key and reports whether it fits in the current window.
	Allow(ctx context.Context, key string) (bool, error)
}

// fixedWindowScript increments the counter and starts the window on the first hit.
var fixedWindowScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

type RedisFixedWindow struct {
	rdb    redis.Scripter
	limit  int
	window time.Duration
	prefix string
}

func NewRedisFixedWindow(rdb redis.Scripter, prefix string, limit int, window time.Duration) *RedisFixedWindow {
	return &RedisFixedWindow{rdb: rdb, limit: limit, window: window, prefix: prefix}
}

func (l *RedisFixedWindow) Allow(ctx context.Context, key string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}
	n, err := fixedWindowScript.Run(ctx, l.rdb, []string{l.prefix + key}, l.window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("rate limit: %w", err)
	}
	return n <= int64(l.limit), nil
}

type window struct {
	start time.Time
	count int
}

type MemFixedWindow struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	windows map[string]*window
	now     func() time.Time
}

func NewMemFixedWindow(limit int, w time.Duration) *MemFixedWindow {
	return &MemFixedWindow{limit: limit, window: w, windows: map[string]*window{}, now: time.Now}
}

func (l *MemFixedWindow) Allow(_ context.Context, key string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.window {
		w = &window{start: now}
		l.windows[key] = w
		l.sweep(now)
	}
	w.count++
	return w.count <= l.limit, nil
}

// sweep drops expired windows so the map does not grow with every session seen.
func (l *MemFixedWindow) sweep(now time.Time) {
	for k, w := range l.windows {
		if now.Sub(w.start) >= l.window {
			delete(l.windows, k)
		}
	}
}

// Middleware rejects requests over the limit with 429. The key comes from keyFn;
// limiter errors let the request through.
func Middleware(l Limiter, keyFn func(*gin.Context) string, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := l.Allow(c.Request.Context(), keyFn(c))
		if err != nil {
			log.Warn().Err(err).Msg("rate limiter unavailable")
			c.Next()
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests, try again later"})
			return
		}
		c.Next()
	}
}

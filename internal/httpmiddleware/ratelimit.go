package httpmiddleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"nfcattendance/internal/clock"
)

// Limiter decides whether a request keyed by client IP may proceed.
type Limiter interface {
	Allow(c *gin.Context, key string) bool
}

// TokenBucket is an in-memory per-key rate limiter.
type TokenBucket struct {
	capacity int
	rate     int
	clock    clock.Clock
	mu       sync.Mutex
	state    map[string]*bucket
}

type bucket struct {
	tokens int
	last   time.Time
}

// NewTokenBucket creates limiter with capacity tokens and rate per minute.
func NewTokenBucket(capacity, perMinute int, clk clock.Clock) *TokenBucket {
	if capacity <= 0 {
		capacity = perMinute
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &TokenBucket{
		capacity: capacity,
		rate:     perMinute,
		clock:    clk,
		state:    make(map[string]*bucket),
	}
}

// Allow takes one token for key.
func (l *TokenBucket) Allow(_ *gin.Context, key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.state[key]
	now := l.clock.Now()
	if !ok {
		b = &bucket{tokens: l.capacity - 1, last: now}
		l.state[key] = b
		return true
	}
	elapsed := now.Sub(b.last).Minutes()
	refill := int(elapsed * float64(l.rate))
	if refill > 0 {
		b.tokens += refill
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// Middleware returns gin handler enforcing per-IP limits.
func Middleware(l Limiter, msg string) gin.HandlerFunc {
	if msg == "" {
		msg = "rate limit"
	}
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if !l.Allow(c, ip) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": msg})
			return
		}
		c.Next()
	}
}

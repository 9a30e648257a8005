package httpmiddleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"nfcattendance/internal/clock"
)

// RedisWindow is a fixed-window counter shared by every API replica. When
// Redis is unreachable requests are let through.
type RedisWindow struct {
	client *redis.Client
	prefix string
	limit  int64
	window time.Duration
	clock  clock.Clock
	logger *logrus.Logger
}

func NewRedisWindow(client *redis.Client, prefix string, limit int, window time.Duration, clk clock.Clock, logger *logrus.Logger) *RedisWindow {
	if window <= 0 {
		window = time.Minute
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &RedisWindow{client: client, prefix: prefix, limit: int64(limit), window: window, clock: clk, logger: logger}
}

// slotKey names the counter of key for the window containing now.
func (w *RedisWindow) slotKey(key string) string {
	slot := w.clock.Now().UnixNano() / int64(w.window)
	return fmt.Sprintf("%s:%s:%d", w.prefix, key, slot)
}

// Allow counts one hit for key in the current window.
func (w *RedisWindow) Allow(c *gin.Context, key string) bool {
	if w.limit <= 0 {
		return true
	}
	ctx := c.Request.Context()
	k := w.slotKey(key)

	pipe := w.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, w.window)
	if _, err := pipe.Exec(ctx); err != nil {
		w.logger.WithError(err).WithField("key", key).Warn("rate limit check skipped")
		return true
	}
	return incr.Val() <= w.limit
}

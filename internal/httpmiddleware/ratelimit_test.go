package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"nfcattendance/internal/clock"
	"nfcattendance/internal/logging"
)

func TestTokenBucketRefills(t *testing.T) {
	clk := clock.NewFake(time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC))
	l := NewTokenBucket(2, 60, clk)

	assert.True(t, l.Allow(nil, "10.0.0.1"))
	assert.True(t, l.Allow(nil, "10.0.0.1"))
	assert.False(t, l.Allow(nil, "10.0.0.1"))
	assert.True(t, l.Allow(nil, "10.0.0.2"))

	clk.Advance(time.Second)
	assert.True(t, l.Allow(nil, "10.0.0.1"))
	assert.False(t, l.Allow(nil, "10.0.0.1"))
}

func TestMiddlewareRejectsOverLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware(NewTokenBucket(1, 1, nil), "too many login attempts"))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "too many login attempts")
}

func TestRedisWindowFailsOpen(t *testing.T) {
	gin.SetMode(gin.TestMode)
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	l := NewRedisWindow(client, "login", 1, time.Minute, nil, logging.Discard())

	r := gin.New()
	r.Use(Middleware(l, ""))
	r.POST("/login", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRedisWindowSlots(t *testing.T) {
	clk := clock.NewFake(time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC))
	w := NewRedisWindow(nil, "login", 5, time.Minute, clk, logging.Discard())

	first := w.slotKey("10.0.0.1")
	assert.Regexp(t, `^login:10\.0\.0\.1:[0-9]+$`, first)

	clk.Advance(59 * time.Second)
	assert.Equal(t, first, w.slotKey("10.0.0.1"))
	assert.NotEqual(t, first, w.slotKey("10.0.0.2"))

	clk.Advance(time.Second)
	assert.NotEqual(t, first, w.slotKey("10.0.0.1"))
}

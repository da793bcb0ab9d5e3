package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Allow(t *testing.T) {
	// 120 requests per minute is one token every 0.5s
	rl := NewRateLimiter(120, 1)
	limiter := rl.GetLimiter("192.168.1.1")

	assert.True(t, limiter.Allow(), "First request should be allowed")
	assert.False(t, limiter.Allow(), "Second request should be blocked")

	time.Sleep(600 * time.Millisecond)
	assert.True(t, limiter.Allow(), "Request should be allowed after refill")
}

func TestRateLimiter_DifferentIPs(t *testing.T) {
	rl := NewRateLimiter(2, 1)

	limiter1 := rl.GetLimiter("192.168.1.1")
	limiter2 := rl.GetLimiter("192.168.1.2")

	assert.True(t, limiter1.Allow())
	assert.True(t, limiter2.Allow())
	assert.False(t, limiter1.Allow())
	assert.False(t, limiter2.Allow())
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(60, 2)
	rl.GetLimiter("10.0.0.1")
	rl.GetLimiter("10.0.0.2").Allow()

	rl.Cleanup()
	assert.Equal(t, 1, rl.Visitors(), "only the idle visitor is removed")

	ctx, cancel := context.WithCancel(context.Background())
	rl.StartCleanup(ctx, 10*time.Millisecond)
	cancel()
}

func TestRateLimitMiddleware(t *testing.T) {
	e := echo.New()
	rl := NewRateLimiter(60, 2)
	e.Use(rl.RateLimitMiddleware())
	e.GET("/api/v1/kpis", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/kpis", nil)
		req.Header.Set(echo.HeaderXRealIP, "203.0.113.9")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

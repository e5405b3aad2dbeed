package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"guardian-api/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A nil limiter must behave as if rate limiting were never configured.
func TestNilLimiterPassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var rl *RateLimiter
	engine := gin.New()
	engine.GET("/ping", rl.Limit("ping", 1, time.Minute), func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestNewRateLimiterDisabled(t *testing.T) {
	rl, err := NewRateLimiter(&config.Config{RateLimitEnabled: false, RedisURL: "redis://localhost:6379"})
	require.NoError(t, err)
	assert.Nil(t, rl)

	rl, err = NewRateLimiter(&config.Config{RateLimitEnabled: true, RedisURL: ""})
	require.NoError(t, err)
	assert.Nil(t, rl)
}

func TestNewRateLimiterBadURL(t *testing.T) {
	_, err := NewRateLimiter(&config.Config{RateLimitEnabled: true, RedisURL: "not-a-url"})
	assert.Error(t, err)
}

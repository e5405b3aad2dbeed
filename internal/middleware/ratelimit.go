package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"guardian-api/internal/config"
	"guardian-api/internal/response"
	"guardian-api/pkg/logging"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimiter enforces fixed-window per-client budgets backed by Redis. A nil
// limiter hands out passthrough middleware, so the service degrades gracefully
// when Redis is not configured.
type RateLimiter struct {
	client *redis.Client
}

// NewRateLimiter connects to Redis. Returns (nil, nil) when rate limiting is
// disabled or no Redis URL is configured.
func NewRateLimiter(cfg *config.Config) (*RateLimiter, error) {
	if !cfg.RateLimitEnabled || cfg.RedisURL == "" {
		logging.Infof("Rate limiting disabled")
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.Infof("Rate limiting enabled")
	return &RateLimiter{client: client}, nil
}

// Ping checks the Redis connection.
func (rl *RateLimiter) Ping(ctx context.Context) error {
	return rl.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (rl *RateLimiter) Close() error {
	return rl.client.Close()
}

// Limit returns middleware allowing `limit` requests per client IP per window
// for the named route group.
func (rl *RateLimiter) Limit(name string, limit int, window time.Duration) gin.HandlerFunc {
	if rl == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		key := fmt.Sprintf("rate_limit:%s:%s", name, c.ClientIP())

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		count, err := rl.client.Incr(ctx, key).Result()
		if err != nil {
			// Redis trouble must not take payments down with it.
			logging.Errorf("Rate limit check failed for %s: %v", key, err)
			c.Next()
			return
		}
		if count == 1 {
			rl.client.Expire(ctx, key, window)
		}
		if count > int64(limit) {
			logging.Infof("Rate limit exceeded: %s", key)
			response.ErrorJSON(c, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
			c.Abort()
			return
		}
		c.Next()
	}
}

package middleware

import (
	"fmt"
	"time"

	"unimarket/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimiter is a fixed window counter kept in redis.
type RateLimiter struct {
	Redis   *redis.Client
	Prefix  string
	Limit   int
	Window  time.Duration
	Metrics *metrics.Metrics
	Log     *zap.SugaredLogger
}

func NewRateLimiter(r *redis.Client, prefix string, limit int, window time.Duration, m *metrics.Metrics, log *zap.SugaredLogger) *RateLimiter {
	return &RateLimiter{Redis: r, Prefix: prefix, Limit: limit, Window: window, Metrics: m, Log: log}
}

// ByUser keys the window on the session user, falling back to the client address.
func ByUser(c *fiber.Ctx) string {
	if id := UserID(c); id != 0 {
		return fmt.Sprintf("user:%d", id)
	}
	return "ip:" + c.IP()
}

func ByIP(c *fiber.Ctx) string {
	return "ip:" + c.IP()
}

func (r *RateLimiter) MiddlewareByKey(keyFunc func(c *fiber.Ctx) string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		redisKey := fmt.Sprintf("%s:%s", r.Prefix, keyFunc(c))
		ctx := c.UserContext()

		count, err := r.Redis.Incr(ctx, redisKey).Result()
		if err != nil {
			// Fail open, a limiter outage must not take the API down.
			r.Log.Warnw("rate limiter unavailable", "key", redisKey, "err", err)
			return c.Next()
		}
		if count == 1 {
			if err := r.Redis.Expire(ctx, redisKey, r.Window).Err(); err != nil {
				r.Log.Warnw("failed to set rate limit window", "key", redisKey, "err", err)
			}
		}

		if count > int64(r.Limit) {
			if r.Metrics != nil {
				r.Metrics.RateLimitHits.WithLabelValues(r.Prefix).Inc()
			}
			if ttl, err := r.Redis.TTL(ctx, redisKey).Result(); err == nil && ttl > 0 {
				c.Set(fiber.HeaderRetryAfter, fmt.Sprintf("%d", int(ttl.Seconds())))
			}
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"status":  "error",
				"message": "Too many requests",
				"data":    nil,
			})
		}
		return c.Next()
	}
}

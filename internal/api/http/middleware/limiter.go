package middleware

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	fiberredis "github.com/gofiber/storage/redis/v3"
	"github.com/redis/go-redis/v9"

	"github.com/Alijeyrad/franchise_backend/config"
)

// NewLimiterWithRedis shares the sliding-window counters between instances
// through Redis.
func NewLimiterWithRedis(rdb *redis.Client, cfg config.RateLimitConfig) fiber.Handler {
	max, window := cfg.Max, time.Duration(cfg.WindowSeconds)*time.Second
	if max <= 0 {
		max = 60
	}
	if window <= 0 {
		window = 30 * time.Second
	}
	return limiter.New(limiter.Config{
		Storage:           fiberredis.NewFromConnection(rdb),
		Max:               max,
		Expiration:        window,
		LimiterMiddleware: limiter.SlidingWindow{},
	})
}

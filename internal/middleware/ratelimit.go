package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/SahanWeerasiri/genApp/internal/metrics"
	"github.com/SahanWeerasiri/genApp/pkg/response"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const maxLocalBuckets = 10000

type localBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter counts requests per user in redis. When redis is missing or
// failing it falls back to an in-process token bucket per key.
type RateLimiter struct {
	redis   *redis.Client
	logger  zerolog.Logger
	metrics *metrics.Metrics

	mu    sync.Mutex
	local map[string]*localBucket
}

// NewRateLimiter creates a limiter. redisClient may be nil.
func NewRateLimiter(redisClient *redis.Client, logger zerolog.Logger, m *metrics.Metrics) *RateLimiter {
	return &RateLimiter{
		redis:   redisClient,
		logger:  logger.With().Str("component", "ratelimit").Logger(),
		metrics: m,
		local:   make(map[string]*localBucket),
	}
}

// Limit creates a rate limiting middleware. Anonymous callers are keyed by IP.
func (rl *RateLimiter) Limit(keyPrefix string, maxRequests int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		subject := GetUserID(c)
		if subject == "" {
			subject = "ip:" + c.IP()
		}
		key := fmt.Sprintf("ratelimit:%s:%s", keyPrefix, subject)

		if rl.redis != nil {
			count, ttl, err := rl.incr(c.UserContext(), key, window)
			if err == nil {
				if count > int64(maxRequests) {
					c.Set("Retry-After", fmt.Sprintf("%d", int(ttl.Seconds())))
					rl.metrics.RateLimited(keyPrefix)
					return response.RateLimited(c)
				}
				c.Set("X-RateLimit-Limit", fmt.Sprintf("%d", maxRequests))
				c.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", maxRequests-int(count)))
				return c.Next()
			}
			rl.logger.Warn().Err(err).Str("key", key).Msg("redis rate limit unavailable, using local bucket")
		}

		if !rl.allowLocal(key, maxRequests, window) {
			c.Set("Retry-After", fmt.Sprintf("%d", int(window.Seconds())/max(maxRequests, 1)))
			rl.metrics.RateLimited(keyPrefix)
			return response.RateLimited(c)
		}
		return c.Next()
	}
}

func (rl *RateLimiter) incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	count, err := rl.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if count == 1 {
		if err := rl.expire(ctx, key, window); err != nil {
			return 0, 0, err
		}
		return count, window, nil
	}
	ttl, err := rl.redis.TTL(ctx, key).Result()
	if err == nil && ttl < 0 {
		if err := rl.expire(ctx, key, window); err != nil {
			return 0, 0, err
		}
		ttl = window
	}
	return count, ttl, nil
}

// expire sets the window on key. On failure the key is dropped, since a
// counter without a ttl never resets.
func (rl *RateLimiter) expire(ctx context.Context, key string, window time.Duration) error {
	if err := rl.redis.Expire(ctx, key, window).Err(); err != nil {
		rl.redis.Del(ctx, key)
		return fmt.Errorf("set ttl on %s: %w", key, err)
	}
	return nil
}

func (rl *RateLimiter) allowLocal(key string, maxRequests int, window time.Duration) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, ok := rl.local[key]
	if !ok {
		if len(rl.local) >= maxLocalBuckets {
			rl.sweepLocked(now, window)
		}
		every := window / time.Duration(max(maxRequests, 1))
		b = &localBucket{limiter: rate.NewLimiter(rate.Every(every), maxRequests)}
		rl.local[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

func (rl *RateLimiter) sweepLocked(now time.Time, idle time.Duration) {
	for k, b := range rl.local {
		if now.Sub(b.lastSeen) > idle {
			delete(rl.local, k)
		}
	}
}

// GenerateLimit limits generation requests per user per minute
func (rl *RateLimiter) GenerateLimit(maxPerMin int) fiber.Handler {
	return rl.Limit("generate", maxPerMin, time.Minute)
}

// WarmupLimit caps warm-up requests for the whole process, whoever sends them
func (rl *RateLimiter) WarmupLimit(maxPerMin int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !rl.allowLocal("ratelimit:warmup:process", maxPerMin, time.Minute) {
			rl.metrics.RateLimited("warmup")
			return response.RateLimited(c)
		}
		return c.Next()
	}
}

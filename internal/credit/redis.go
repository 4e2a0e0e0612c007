package credit

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// consumeScript decrements the balance only when it is positive and returns
// the new balance, or -1 when nothing was consumed.
var consumeScript = redis.NewScript(`
local balance = tonumber(redis.call('GET', KEYS[1]) or '0')
if balance > 0 then
	return redis.call('DECR', KEYS[1])
end
return -1
`)

// RedisStore keeps balances under credits:{userID}.
type RedisStore struct {
	redis *redis.Client
}

func NewRedisStore(redisClient *redis.Client) *RedisStore {
	return &RedisStore{redis: redisClient}
}

func (s *RedisStore) Name() string { return "redis" }

func creditKey(userID string) string {
	return fmt.Sprintf("credits:%s", userID)
}

func (s *RedisStore) Balance(ctx context.Context, userID string) (int, error) {
	balance, err := s.redis.Get(ctx, creditKey(userID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}
	return balance, nil
}

func (s *RedisStore) ConsumeOne(ctx context.Context, userID string) (bool, error) {
	remaining, err := consumeScript.Run(ctx, s.redis, []string{creditKey(userID)}).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to consume credit: %w", err)
	}
	return remaining >= 0, nil
}

func (s *RedisStore) AddCredits(ctx context.Context, userID string, n int) (int, error) {
	if n <= 0 {
		return 0, ErrInvalidAmount
	}
	balance, err := s.redis.IncrBy(ctx, creditKey(userID), int64(n)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to add credits: %w", err)
	}
	return int(balance), nil
}

func (s *RedisStore) Provision(ctx context.Context, userID string, initial int) (bool, error) {
	created, err := s.redis.SetNX(ctx, creditKey(userID), initial, 0).Result()
	if err != nil {
		return false, fmt.Errorf("failed to provision account: %w", err)
	}
	return created, nil
}

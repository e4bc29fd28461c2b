package middlewares

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter shares the fixed window across processes. Keys expire with
// the window, so there is no cleanup pass.
type RedisLimiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
	prefix string
}

func NewRedisLimiter(rdb *redis.Client, limit int, window time.Duration, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "ratelimit"
	}

	return &RedisLimiter{
		rdb:    rdb,
		limit:  limit,
		window: window,
		prefix: prefix,
	}
}

func (rl *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	k := rl.prefix + ":" + key

	count, err := rl.rdb.Incr(ctx, k).Result()

	if err != nil {
		return false, 0, err
	}

	if count == 1 {
		err = rl.rdb.Expire(ctx, k, rl.window).Err()

		if err != nil {
			return false, 0, err
		}
	}

	if int(count) > rl.limit {
		ttl, err := rl.rdb.TTL(ctx, k).Result()

		if err != nil || ttl < 0 {
			ttl = rl.window
		}

		return false, ttl, nil
	}

	return true, 0, nil
}

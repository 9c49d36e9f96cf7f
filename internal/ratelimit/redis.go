package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// counterStore increments a key and reports its remaining TTL in one step.
// A negative TTL means the key has no expiry.
type counterStore interface {
	incr(ctx context.Context, key string) (count int64, ttl time.Duration, err error)
	expire(ctx context.Context, key string, window time.Duration) error
}

type RedisLimiter struct {
	store  counterStore
	policy Policy
	prefix string
}

func NewRedisLimiter(client redis.Cmdable, policy Policy, prefix string) *RedisLimiter {
	return &RedisLimiter{
		store:  redisCounter{client: client},
		policy: policy,
		prefix: prefix,
	}
}

// Allow counts one attempt. Any counter found without an expiry gets the
// window applied, so a failed EXPIRE never pins a key forever.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("%s:%s", l.prefix, key)

	count, ttl, err := l.store.incr(ctx, redisKey)
	if err != nil {
		return false, fmt.Errorf("rate limit %s: %w", redisKey, err)
	}
	if ttl < 0 {
		if err := l.store.expire(ctx, redisKey, l.policy.Window); err != nil {
			return false, fmt.Errorf("rate limit expire %s: %w", redisKey, err)
		}
	}

	return count <= int64(l.policy.Limit), nil
}

type redisCounter struct {
	client redis.Cmdable
}

func (r redisCounter) incr(ctx context.Context, key string) (int64, time.Duration, error) {
	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		ttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return incr.Val(), ttl.Val(), nil
}

func (r redisCounter) expire(ctx context.Context, key string, window time.Duration) error {
	return r.client.PExpire(ctx, key, window).Err()
}

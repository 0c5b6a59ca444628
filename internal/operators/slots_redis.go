package operators

import (
	"context"
	"errors"
	"time"

	"github.com/PewPewSlowMo/SmartCallCenter/pkg/utils"

	"github.com/redis/go-redis/v9"
)

const slotKeyPrefix = "callcenter:op:slots:"

// RedisSlots is a CallSlots backed by the shared Redis concurrency-cap
// scripts, so capacity holds across multiple API instances. The TTL bounds
// leaked slots if a process dies mid-call.
type RedisSlots struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisSlots(rdb *redis.Client, ttl time.Duration) *RedisSlots {
	if ttl <= 0 {
		ttl = 4 * time.Hour
	}
	return &RedisSlots{rdb: rdb, ttl: ttl}
}

func (r *RedisSlots) Acquire(ctx context.Context, op Operator) (bool, error) {
	limit := op.MaxConcurrentCalls
	if limit <= 0 {
		limit = 1
	}
	return utils.AcquireConcurrencyCap(ctx, r.rdb, slotKeyPrefix+op.ID, limit, r.ttl)
}

func (r *RedisSlots) Release(ctx context.Context, operatorID string) error {
	return utils.ReleaseConcurrencyCap(ctx, r.rdb, slotKeyPrefix+operatorID)
}

func (r *RedisSlots) InUse(ctx context.Context, operatorID string) (int, error) {
	n, err := r.rdb.Get(ctx, slotKeyPrefix+operatorID).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

package fulfillment

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisLock serializes fulfillment runs per order across workers. The
// TTL covers a crashed holder; the database transition guard keeps a
// second run after expiry harmless.
type RedisLock struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisLock(client *redis.Client) *RedisLock {
	return &RedisLock{Client: client, TTL: 2 * time.Minute}
}

func (l *RedisLock) Acquire(ctx context.Context, orderID string) (bool, error) {
	return l.Client.SetNX(ctx, "fulfill_lock:"+orderID, 1, l.TTL).Result()
}

func (l *RedisLock) Release(ctx context.Context, orderID string) error {
	return l.Client.Del(ctx, "fulfill_lock:"+orderID).Err()
}

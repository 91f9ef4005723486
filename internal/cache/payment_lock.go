package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// releaseScript deletes the key only while it still holds our token, so a
// lock that expired and was re-acquired elsewhere is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

const defaultLockTTL = 30 * time.Second

// PaymentLock serializes payment attempts per order across instances.
// The TTL bounds how long a crashed holder can block retries.
type PaymentLock struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

func NewPaymentLock(rdb *redis.Client, ttl time.Duration, logger zerolog.Logger) *PaymentLock {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &PaymentLock{rdb: rdb, ttl: ttl, logger: logger}
}

func lockKey(orderID string) string {
	return "storefront:payment-lock:" + orderID
}

func (l *PaymentLock) Acquire(ctx context.Context, orderID string) (func(), bool, error) {
	key := lockKey(orderID)
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Err(); err != nil {
			l.logger.Warn().Err(err).Str("order_id", orderID).Msg("release payment lock failed, key will expire")
		}
	}
	return release, true, nil
}

package redis_client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const defaultLockExpiry = 30 * time.Second
const defaultLockRetryInterval = 25 * time.Millisecond

// Only delete the key if it still holds our token
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

// FingerprintLock serialises work on one key across processes sharing a
// Redis. A holder that dies loses the lock after Expiry.
type FingerprintLock struct {
	Client        *redis.Client
	Prefix        string
	Expiry        time.Duration
	RetryInterval time.Duration
}

func NewFingerprintLock(client *redis.Client) *FingerprintLock {
	return &FingerprintLock{
		Client:        client,
		Prefix:        "fareharvest:lock:",
		Expiry:        defaultLockExpiry,
		RetryInterval: defaultLockRetryInterval,
	}
}

func (l *FingerprintLock) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := l.Prefix + key
	token := uuid.NewString()

	expiry := l.Expiry
	if expiry <= 0 {
		expiry = defaultLockExpiry
	}
	retryInterval := l.RetryInterval
	if retryInterval <= 0 {
		retryInterval = defaultLockRetryInterval
	}

	for {
		acquired, err := l.Client.SetNX(ctx, lockKey, token, expiry).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("acquiring lock %s: %w", lockKey, err)
		}
		if acquired {
			break
		}

		timer := time.NewTimer(retryInterval)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}

	return func() {
		err := unlockScript.Run(context.Background(), l.Client, []string{lockKey}, token).Err()
		if err != nil {
			log.Error().Err(err).Str("key", lockKey).Msg("Failed to release lock")
		}
	}, nil
}

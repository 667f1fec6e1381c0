package slotlock

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisLocker holds locks as Redis keys set with NX and a PX expiry, so a
// crashed holder loses the lock after ttl.
type RedisLocker struct {
	rdb    redis.UniversalClient
	wait   time.Duration
	retry  time.Duration
	prefix string
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

var ErrLockLost = errors.New("slotlock: lock expired before release")

func NewRedisLocker(rdb redis.UniversalClient, wait time.Duration, prefix string) *RedisLocker {
	if prefix == "" {
		prefix = "slotmeet"
	}
	return &RedisLocker{rdb: rdb, wait: wait, retry: 50 * time.Millisecond, prefix: prefix}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error) {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	waitCtx, cancel := waitContext(ctx, l.wait)
	defer cancel()

	fullKey := l.prefix + ":" + key
	token := uuid.NewString()
	for {
		ok, err := l.rdb.SetNX(waitCtx, fullKey, token, ttl).Result()
		if err != nil {
			if waitCtx.Err() != nil {
				return nil, timeoutErr(ctx)
			}
			return nil, err
		}
		if ok {
			return l.releaser(fullKey, token), nil
		}

		// Jitter spreads retries from contending requests.
		backoff := l.retry + time.Duration(rand.Int64N(int64(l.retry)))
		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-waitCtx.Done():
			timer.Stop()
			return nil, timeoutErr(ctx)
		}
	}
}

func (l *RedisLocker) releaser(key, token string) Release {
	released := false
	return func(ctx context.Context) error {
		if released {
			return nil
		}
		released = true
		n, err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Int64()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrLockLost
		}
		return nil
	}
}

// File: internal/infra/redis/lock.go
package redis

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"ai-image-billing/internal/domain"
	"ai-image-billing/internal/usecase"
)

var _ usecase.Locker = (*RedisLocker)(nil)

// RedisLocker is a single-node SET NX lock. TryLock hands out a random token
// and only the holder of that token can release the key, so a sweep that
// overran its TTL cannot delete a lock that another instance now holds.
type RedisLocker struct {
	client   RedisClient
	scripter redis.Scripter
	retries  int
	backoff  time.Duration
}

func NewLocker(c *Client) *RedisLocker {
	return &RedisLocker{client: c, scripter: c.cli, retries: 2, backoff: 50 * time.Millisecond}
}

// TryLock retries a few times and then reports the last attempt's outcome:
// domain.ErrLockHeld when the key is still taken, or the Redis error.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if key == "" || ttl <= 0 {
		return "", errors.New("lock key and ttl are required")
	}
	token := uuid.NewString()

	var lastErr error
	for attempt := 0; attempt <= l.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * l.backoff):
			}
		}
		ok, err := l.client.SetNX(ctx, key, token, ttl)
		switch {
		case err != nil:
			lastErr = err
		case ok:
			return token, nil
		default:
			lastErr = domain.ErrLockHeld
		}
	}
	return "", lastErr
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Unlock is a no-op when the lock already expired or changed hands.
func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	if token == "" {
		return nil
	}
	return releaseScript.Run(ctx, l.scripter, []string{key}, token).Err()
}

package redis

import (
	"context"
	"strconv"
	"time"
)

// RateLimiter counts hits per fixed window. Each window gets its own key
// (<key>:<window start>) so a lost EXPIRE can only ever leak one bucket and
// never blocks a caller past the window it was counted in.
type RateLimiter struct {
	client RedisClient
	now    func() time.Time
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client, now: time.Now}
}

// Allow reports whether the hit fits into limit for the current window.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 || window <= 0 {
		return true, nil
	}
	bucket := windowKey(key, r.now(), window)

	count, err := r.client.Incr(ctx, bucket)
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := r.client.Expire(ctx, bucket, window+time.Second); err != nil {
			return false, err
		}
	}
	return count <= int64(limit), nil
}

func windowKey(key string, now time.Time, window time.Duration) string {
	start := now.Truncate(window).Unix()
	return key + ":" + strconv.FormatInt(start, 10)
}

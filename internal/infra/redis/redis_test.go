//go:build !integration

package redis

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-image-billing/internal/domain"
)

// memClient is an in-memory RedisClient; TTLs are recorded but not enforced.
type memClient struct {
	mu   sync.Mutex
	data map[string]string
	ttl  map[string]time.Duration
	err  error
}

var _ RedisClient = (*memClient)(nil)

func newMemClient() *memClient {
	return &memClient{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (m *memClient) Ping(ctx context.Context) error { return m.err }

func (m *memClient) Set(ctx context.Context, key string, value interface{}, exp time.Duration) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = toString(value)
	m.ttl[key] = exp
	return nil
}

func (m *memClient) SetNX(ctx context.Context, key string, value interface{}, exp time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = toString(value)
	m.ttl[key] = exp
	return true, nil
}

func (m *memClient) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", errors.New("redis: nil")
	}
	return v, nil
}

func (m *memClient) Incr(ctx context.Context, key string) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n, _ := strconv.ParseInt(m.data[key], 10, 64)
	n++
	m.data[key] = strconv.FormatInt(n, 10)
	return n, nil
}

func (m *memClient) Expire(ctx context.Context, key string, exp time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ttl[key] = exp
	return nil
}

func (m *memClient) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memClient) Close() error { return nil }

func toString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	}
	return ""
}

func TestEventGuard(t *testing.T) {
	ctx := context.Background()

	t.Run("should report the first sighting only once", func(t *testing.T) {
		client := newMemClient()
		guard, err := NewEventGuard(client, 0)
		require.NoError(t, err)

		first, err := guard.CheckAndMark(ctx, "webhook:stripe", "evt_1")
		require.NoError(t, err)
		assert.True(t, first)

		again, err := guard.CheckAndMark(ctx, "webhook:stripe", "evt_1")
		require.NoError(t, err)
		assert.False(t, again)

		assert.Equal(t, DefaultEventTTL, client.ttl[EventKey("webhook:stripe", "evt_1")])
	})

	t.Run("should keep scopes apart", func(t *testing.T) {
		guard, _ := NewEventGuard(newMemClient(), time.Hour)
		a, _ := guard.CheckAndMark(ctx, "webhook:stripe", "evt_1")
		b, _ := guard.CheckAndMark(ctx, "webhook:creem", "evt_1")
		assert.True(t, a)
		assert.True(t, b)
	})

	t.Run("should allow reprocessing after release", func(t *testing.T) {
		guard, _ := NewEventGuard(newMemClient(), time.Hour)
		_, _ = guard.CheckAndMark(ctx, "s", "evt_2")
		require.NoError(t, guard.Release(ctx, "s", "evt_2"))
		again, err := guard.CheckAndMark(ctx, "s", "evt_2")
		require.NoError(t, err)
		assert.True(t, again)
	})

	t.Run("should surface store errors", func(t *testing.T) {
		client := newMemClient()
		client.err = errors.New("connection refused")
		guard, _ := NewEventGuard(client, time.Hour)
		_, err := guard.CheckAndMark(ctx, "s", "evt_3")
		assert.Error(t, err)
	})

	t.Run("should reject an empty event id", func(t *testing.T) {
		guard, _ := NewEventGuard(newMemClient(), time.Hour)
		_, err := guard.CheckAndMark(ctx, "s", "")
		assert.Error(t, err)
	})
}

func TestRateLimiter(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 1, 1, 10, 0, 5, 0, time.UTC)

	t.Run("should block once the window is full", func(t *testing.T) {
		// --- Arrange ---
		client := newMemClient()
		rl := NewRateLimiter(client)
		rl.now = func() time.Time { return start }

		// --- Act & Assert ---
		for i := 0; i < 3; i++ {
			ok, err := rl.Allow(ctx, "rate_limit:consume:u1", 3, time.Minute)
			require.NoError(t, err)
			assert.True(t, ok, "call %d should pass", i+1)
		}
		ok, err := rl.Allow(ctx, "rate_limit:consume:u1", 3, time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		bucket := windowKey("rate_limit:consume:u1", start, time.Minute)
		assert.Equal(t, "4", client.data[bucket])
		assert.Equal(t, time.Minute+time.Second, client.ttl[bucket])
	})

	t.Run("should start over in the next window", func(t *testing.T) {
		client := newMemClient()
		rl := NewRateLimiter(client)
		now := start
		rl.now = func() time.Time { return now }

		for i := 0; i < 2; i++ {
			_, err := rl.Allow(ctx, "k", 1, time.Minute)
			require.NoError(t, err)
		}
		now = start.Add(time.Minute)

		ok, err := rl.Allow(ctx, "k", 1, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("should pass everything when limiting is disabled", func(t *testing.T) {
		client := newMemClient()
		client.err = errors.New("redis down")
		rl := NewRateLimiter(client)

		ok, err := rl.Allow(ctx, "k", 0, time.Minute)

		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("should surface redis errors", func(t *testing.T) {
		client := newMemClient()
		client.err = errors.New("redis down")
		rl := NewRateLimiter(client)

		_, err := rl.Allow(ctx, "k", 3, time.Minute)

		assert.Error(t, err)
	})
}

func TestRedisLocker(t *testing.T) {
	ctx := context.Background()

	t.Run("should hand out the lock once", func(t *testing.T) {
		// --- Arrange ---
		client := newMemClient()
		l := &RedisLocker{client: client, retries: 1}

		// --- Act ---
		token, err := l.TryLock(ctx, "lock:orders:expire", time.Minute)
		require.NoError(t, err)
		_, err = l.TryLock(ctx, "lock:orders:expire", time.Minute)

		// --- Assert ---
		assert.NotEmpty(t, token)
		assert.ErrorIs(t, err, domain.ErrLockHeld)
		assert.Equal(t, token, client.data["lock:orders:expire"])
		assert.Equal(t, time.Minute, client.ttl["lock:orders:expire"])
	})

	t.Run("should return the redis error", func(t *testing.T) {
		client := newMemClient()
		client.err = errors.New("redis down")
		l := &RedisLocker{client: client}

		_, err := l.TryLock(ctx, "k", time.Minute)

		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrLockHeld)
	})

	t.Run("should reject a missing ttl", func(t *testing.T) {
		l := &RedisLocker{client: newMemClient()}
		_, err := l.TryLock(ctx, "k", 0)
		assert.Error(t, err)
	})

	t.Run("should ignore an empty token on unlock", func(t *testing.T) {
		l := &RedisLocker{client: newMemClient()}
		assert.NoError(t, l.Unlock(ctx, "k", ""))
	})
}

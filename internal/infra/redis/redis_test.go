//go:build !integration

package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis keeps values in memory and ignores expirations.
type fakeRedis struct {
	mu       sync.Mutex
	counters map[string]int64
	values   map[string]string
	expires  map[string]time.Duration
	incrErr  error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		counters: map[string]int64{},
		values:   map[string]string{},
		expires:  map[string]time.Duration{},
	}
}

func (f *fakeRedis) Ping(ctx context.Context) error { return nil }

func (f *fakeRedis) Incr(ctx context.Context, key string) (int64, error) {
	if f.incrErr != nil {
		return 0, f.incrErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters[key]++
	return f.counters[key], nil
}

func (f *fakeRedis) Expire(ctx context.Context, key string, d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expires[key] = d
	return nil
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, d time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = value.(string)
	f.expires[key] = d
	return true, nil
}

func (f *fakeRedis) DelIfEquals(ctx context.Context, key, value string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.values[key] != value {
		return false, nil
	}
	delete(f.values, key)
	return true, nil
}

func (f *fakeRedis) Close() error { return nil }

func TestRateLimiter_Allow(t *testing.T) {
	ctx := context.Background()
	fr := newFakeRedis()
	rl := NewRateLimiter(fr)
	now := time.Date(2025, 3, 1, 10, 15, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	key := SubmitProofKey("t-1")

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, key, 3, time.Hour)
		require.NoError(t, err)
		assert.True(t, ok, "call %d", i+1)
	}
	ok, err := rl.Allow(ctx, key, 3, time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Hour+time.Second, fr.expires[rl.windowKey(key, time.Hour)])

	other, err := rl.Allow(ctx, SubmitProofKey("t-2"), 3, time.Hour)
	require.NoError(t, err)
	assert.True(t, other)

	t.Run("next window starts a fresh count", func(t *testing.T) {
		now = now.Add(time.Hour)
		ok, err := rl.Allow(ctx, key, 3, time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("zero limit is unlimited", func(t *testing.T) {
		ok, err := rl.Allow(ctx, key, 0, time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("redis errors surface", func(t *testing.T) {
		fr.incrErr = errors.New("down")
		_, err := rl.Allow(ctx, key, 3, time.Hour)
		assert.Error(t, err)
	})
}

func TestRedisLocker(t *testing.T) {
	ctx := context.Background()
	l := NewLocker(newFakeRedis())

	tok, err := l.TryLock(ctx, "lock:sweep", time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, tok)
	assert.Contains(t, tok, "/")

	_, err = l.TryLock(ctx, "lock:sweep", time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)

	require.NoError(t, l.Unlock(ctx, "lock:sweep", "someone-else"))
	_, err = l.TryLock(ctx, "lock:sweep", time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)

	require.NoError(t, l.Unlock(ctx, "lock:sweep", tok))
	_, err = l.TryLock(ctx, "lock:sweep", time.Minute)
	assert.NoError(t, err)

	_, err = l.TryLock(ctx, "lock:other", 0)
	assert.Error(t, err)
}

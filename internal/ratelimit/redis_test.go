package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCounter struct {
	now       time.Time
	counts    map[string]int64
	expiresAt map[string]time.Time
	expireErr error
	expires   int
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{
		now:       time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		counts:    make(map[string]int64),
		expiresAt: make(map[string]time.Time),
	}
}

func (f *fakeCounter) incr(_ context.Context, key string) (int64, time.Duration, error) {
	if at, ok := f.expiresAt[key]; ok && !f.now.Before(at) {
		delete(f.counts, key)
		delete(f.expiresAt, key)
	}
	f.counts[key]++
	at, ok := f.expiresAt[key]
	if !ok {
		return f.counts[key], -1, nil
	}
	return f.counts[key], at.Sub(f.now), nil
}

func (f *fakeCounter) expire(_ context.Context, key string, window time.Duration) error {
	f.expires++
	if f.expireErr != nil {
		return f.expireErr
	}
	f.expiresAt[key] = f.now.Add(window)
	return nil
}

func TestRedisLimiter_Allow(t *testing.T) {
	ctx := context.Background()
	store := newFakeCounter()
	l := &RedisLimiter{store: store, policy: Policy{Limit: 2, Window: time.Minute}, prefix: "login"}

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, 1, store.expires, "the window is anchored once")
	assert.Contains(t, store.counts, "login:10.0.0.1")

	store.now = store.now.Add(time.Minute)
	ok, err = l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLimiter_KeyWithoutExpiryRecovers(t *testing.T) {
	ctx := context.Background()
	store := newFakeCounter()
	l := &RedisLimiter{store: store, policy: Policy{Limit: 1, Window: time.Minute}, prefix: "login"}

	store.expireErr = errors.New("connection reset")
	_, err := l.Allow(ctx, "10.0.0.1")
	require.Error(t, err)
	assert.NotContains(t, store.expiresAt, "login:10.0.0.1")

	store.expireErr = nil
	ok, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)
	require.Contains(t, store.expiresAt, "login:10.0.0.1", "the missing expiry is applied on the next attempt")

	store.now = store.now.Add(time.Minute)
	ok, err = l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)
}

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorageIncrAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	n, err := s.IncrAttr(ctx, "k", "count", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = s.IncrAttr(ctx, "k", "count", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	var got int64
	require.NoError(t, s.GetAttr(ctx, "k", "count", &got))
	assert.Equal(t, int64(3), got)

	assert.ErrorIs(t, s.GetAttr(ctx, "k", "missing", &got), ErrNotFound)
	assert.ErrorIs(t, s.GetAttr(ctx, "other", "count", &got), ErrNotFound)
}

func TestMemoryStorageExpire(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	s := NewMemoryStorage()
	s.now = func() time.Time { return now }

	require.NoError(t, s.SetAttr(ctx, "k", "v", "hello"))
	require.NoError(t, s.Expire(ctx, "k", now.Add(time.Minute)))

	var got string
	require.NoError(t, s.GetAttr(ctx, "k", "v", &got))
	assert.Equal(t, "hello", got)

	now = now.Add(time.Minute)
	assert.ErrorIs(t, s.GetAttr(ctx, "k", "v", &got), ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "k"), ErrNotFound)
}

func TestStorageWithPrefix(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	prefixed := StorageWithPrefix(s, "p:")

	_, err := prefixed.IncrAttr(ctx, "k", "count", 5)
	require.NoError(t, err)

	var got int64
	require.NoError(t, s.GetAttr(ctx, "p:k", "count", &got))
	assert.Equal(t, int64(5), got)

	require.NoError(t, prefixed.Delete(ctx, "k"))
	assert.ErrorIs(t, s.GetAttr(ctx, "p:k", "count", &got), ErrNotFound)
}

func TestMemoryStorageCounterExpiresWithClock(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	s := NewMemoryStorageWithClock(func() time.Time { return now })

	_, err := s.IncrAttr(ctx, "k", "count", 1)
	require.NoError(t, err)
	require.NoError(t, s.Expire(ctx, "k", now.Add(time.Minute)))
	n, err := s.IncrAttr(ctx, "k", "count", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "expiry in the future of the injected clock keeps the counter")

	now = now.Add(time.Minute)
	n, err = s.IncrAttr(ctx, "k", "count", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

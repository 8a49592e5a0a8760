package lock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentKey(t *testing.T) {
	assert.Equal(t, "lock:owner-1:doc-1", DocumentKey("owner-1", "doc-1"))
}

func exercise(t *testing.T, l Locker, key string) {
	ctx := context.Background()

	lease, err := l.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, key, time.Minute)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, lease.Release(ctx))

	again, err := l.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)

	// A stale lease must not free a key it no longer owns.
	require.NoError(t, lease.Release(ctx))
	_, err = l.Acquire(ctx, key, time.Minute)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, again.Release(ctx))
}

func TestMemoryLocker(t *testing.T) {
	exercise(t, NewMemoryLocker(), DocumentKey("o", "d"))
}

func TestMemoryLocker_Expiry(t *testing.T) {
	l := NewMemoryLocker()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	_, err := l.Acquire(context.Background(), "k", time.Second)
	require.NoError(t, err)

	now = now.Add(2 * time.Second)
	_, err = l.Acquire(context.Background(), "k", time.Second)
	assert.NoError(t, err)
}

func TestRedisLocker(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	client, err := Dial(context.Background(), url)
	require.NoError(t, err)
	defer client.Close()

	exercise(t, NewRedisLocker(client), DocumentKey("test", uuid.NewString()))
}

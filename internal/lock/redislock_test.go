package lock_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/oakmart/storefront-api/internal/lock"
)

func newClient(t *testing.T) *redis.Client {
	t.Helper()
	srv := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: srv.Addr()})
}

func TestWithLockRuns(t *testing.T) {
	l := lock.Locker{R: newClient(t)}
	ran := false
	err := l.WithLock(context.Background(), "merge:cart:1", time.Second, func(context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	require.True(t, ran)
}

func TestWithLockReleasesAfterError(t *testing.T) {
	l := lock.Locker{R: newClient(t)}
	first := l.WithLock(context.Background(), "merge:cart:2", time.Second, func(context.Context) error {
		return context.Canceled
	})
	require.ErrorIs(t, first, context.Canceled)

	// a second caller must be able to acquire the lock immediately
	err := l.WithLock(context.Background(), "merge:cart:2", time.Second, func(context.Context) error {
		return nil
	})
	require.NoError(t, err)
}

func TestWithLockBlocksConcurrentHolder(t *testing.T) {
	client := newClient(t)
	l := lock.Locker{R: client, RetryBackoff: 10 * time.Millisecond}

	require.NoError(t, client.SetNX(context.Background(), "merge:cart:3", "held", time.Minute).Err())

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	err := l.WithLock(ctx, "merge:cart:3", time.Second, func(context.Context) error {
		t.Fatal("callback must not run while lock is held elsewhere")
		return nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

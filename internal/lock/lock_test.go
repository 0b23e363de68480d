package lock

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis implements just enough of the Redis API for the lease:
// SetNX plus the compare-and-delete / compare-and-extend scripts.
type fakeRedis struct {
	redis.Cmdable
	data map[string]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}}
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd {
	if _, held := f.data[key]; held {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	key := keys[0]
	token := fmt.Sprint(args[0])
	if f.data[key] != token {
		return redis.NewCmdResult(int64(0), nil)
	}
	if script == releaseScript {
		delete(f.data, key)
	}
	return redis.NewCmdResult(int64(1), nil)
}

func TestLeaseSingleHolder(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()

	first := NewLease(rdb, "test:lock", time.Minute)
	second := NewLease(rdb, "test:lock", time.Minute)

	acquired, err := first.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, acquired)

	acquired, err = second.TryAcquire(ctx)
	require.NoError(t, err)
	assert.False(t, acquired)

	require.NoError(t, first.Release(ctx))

	acquired, err = second.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestLeaseExtend(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()

	lease := NewLease(rdb, "test:lock", time.Minute)
	acquired, err := lease.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, acquired)

	ok, err := lease.Extend(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	// An expired lease taken over by someone else cannot be extended.
	rdb.data["test:lock"] = "someone-else"
	ok, err = lease.Extend(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReleaseOnlyOwnToken(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()

	lease := NewLease(rdb, "test:lock", time.Minute)
	acquired, err := lease.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, acquired)

	// The lease expired and another node took the lock.
	rdb.data["test:lock"] = "someone-else"

	require.NoError(t, lease.Release(ctx))
	assert.Equal(t, "someone-else", rdb.data["test:lock"])
}

func TestReleaseWithoutAcquireIsNoop(t *testing.T) {
	lease := NewLease(newFakeRedis(), "test:lock", time.Minute)
	assert.NoError(t, lease.Release(context.Background()))
}

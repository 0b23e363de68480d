package worker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openaudio/discovery-indexer/internal/lock"
	"github.com/openaudio/discovery-indexer/internal/store"
)

// fakeRedis covers the lease commands plus the checkpoint hash write.
type fakeRedis struct {
	redis.Cmdable
	locks  map[string]string
	hashes map[string]map[string]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		locks:  map[string]string{},
		hashes: map[string]map[string]string{},
	}
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd {
	if _, held := f.locks[key]; held {
		return redis.NewBoolResult(false, nil)
	}
	f.locks[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	key := keys[0]
	if f.locks[key] != fmt.Sprint(args[0]) {
		return redis.NewCmdResult(int64(0), nil)
	}
	delete(f.locks, key)
	return redis.NewCmdResult(int64(1), nil)
}

func (f *fakeRedis) HSet(ctx context.Context, key string, values ...any) *redis.IntCmd {
	hash, ok := f.hashes[key]
	if !ok {
		hash = map[string]string{}
		f.hashes[key] = hash
	}
	if fields, ok := values[0].(map[string]any); ok {
		for k, v := range fields {
			hash[k] = fmt.Sprint(v)
		}
	}
	return redis.NewIntResult(int64(len(hash)), nil)
}

func TestMaintenancePublishesCheckpoints(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	require.NoError(t, st.CommitBlock(ctx, &store.BlockCommit{Stream: "entity_manager", Height: 42}))

	rdb := newFakeRedis()
	lease := lock.NewLease(rdb, "indexer:maintenance", time.Minute)
	m := NewMaintenance(st, rdb, lease, time.Second, nil)

	require.NoError(t, m.tick(ctx))
	assert.Equal(t, "42", rdb.hashes[checkpointsHashKey]["entity_manager"])

	// The lease is released after the tick.
	assert.Empty(t, rdb.locks)
}

func TestMaintenanceSkipsWhenLockHeld(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	require.NoError(t, st.CommitBlock(ctx, &store.BlockCommit{Stream: "entity_manager", Height: 42}))

	rdb := newFakeRedis()
	rdb.locks["indexer:maintenance"] = "another-node"

	lease := lock.NewLease(rdb, "indexer:maintenance", time.Minute)
	m := NewMaintenance(st, rdb, lease, time.Second, nil)

	require.NoError(t, m.tick(ctx))
	assert.Empty(t, rdb.hashes)
}

// Package lock provides a Redis lease lock for jobs that must run on
// exactly one node at a time, like the maintenance job that publishes
// checkpoint heights.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Compare-and-delete and compare-and-extend, so a node that lost its
// lease through expiry can never stomp on the next holder.
const (
	releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`
	extendScript  = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("pexpire", KEYS[1], ARGV[2]) else return 0 end`
)

// Lease is a single-holder lock with a TTL. Non-reentrant; each
// acquisition mints a fresh token.
type Lease struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
	token  string
}

// NewLease creates a lease on key with the given TTL.
func NewLease(client redis.Cmdable, key string, ttl time.Duration) *Lease {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Lease{client: client, key: key, ttl: ttl}
}

// TryAcquire attempts to take the lease without blocking.
func (l *Lease) TryAcquire(ctx context.Context) (bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", l.key, err)
	}
	if ok {
		l.token = token
	}
	return ok, nil
}

// Extend pushes the lease expiry out by the TTL. Returns false if the
// lease already expired and someone else may hold it.
func (l *Lease) Extend(ctx context.Context) (bool, error) {
	res, err := l.client.Eval(ctx, extendScript, []string{l.key}, l.token, l.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to extend lock %s: %w", l.key, err)
	}
	return res == 1, nil
}

// Release gives the lease up if this holder still owns it.
func (l *Lease) Release(ctx context.Context) error {
	if l.token == "" {
		return nil
	}
	if _, err := l.client.Eval(ctx, releaseScript, []string{l.key}, l.token).Result(); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", l.key, err)
	}
	l.token = ""
	return nil
}

// Package ratelimit bounds the rate of outbound RPC calls to upstream
// chain nodes. The budget is shared across nodes through Redis so a
// fleet pointed at the same RPC provider stays under its quota; when
// Redis is unavailable each node falls back to a local limiter.
package ratelimit

import (
	"context"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const keyPrefix = "indexer:ratelimit:"

// Limiter gates requests per upstream, identified by key.
type Limiter struct {
	distributed *redis_rate.Limiter
	local       *rate.Limiter
	rps         int
	log         *zap.Logger
}

// New creates a limiter allowing rps requests per second per key. With
// a nil Redis client the limiter is purely local.
func New(rdb redis.Cmdable, rps int, log *zap.Logger) *Limiter {
	if rps <= 0 {
		rps = 20
	}
	if log == nil {
		log = zap.NewNop()
	}
	l := &Limiter{
		local: rate.NewLimiter(rate.Limit(rps), rps),
		rps:   rps,
		log:   log,
	}
	if rdb != nil {
		l.distributed = redis_rate.NewLimiter(rdb)
	}
	return l
}

// Wait blocks until a request slot for key is available or the context
// is cancelled.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	if l.distributed == nil {
		return l.local.Wait(ctx)
	}

	for {
		res, err := l.distributed.Allow(ctx, keyPrefix+key, redis_rate.PerSecond(l.rps))
		if err != nil {
			l.log.Warn("distributed rate limit unavailable, using local limiter", zap.Error(err))
			return l.local.Wait(ctx)
		}
		if res.Allowed > 0 {
			return nil
		}

		timer := time.NewTimer(res.RetryAfter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

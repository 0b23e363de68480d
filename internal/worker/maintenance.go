package worker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/openaudio/discovery-indexer/internal/lock"
	"github.com/openaudio/discovery-indexer/internal/store"
)

// checkpointsHashKey is where the maintenance job publishes stream
// heights for dashboards and peer health checks.
const checkpointsHashKey = "indexer:checkpoints"

// Maintenance periodically publishes checkpoint heights to Redis. The
// job runs on every node but a lease lock keeps one publisher active at
// a time.
type Maintenance struct {
	store    store.Store
	redis    redis.Cmdable
	lease    *lock.Lease
	interval time.Duration
	log      *zap.Logger
}

// NewMaintenance creates the maintenance job.
func NewMaintenance(st store.Store, rdb redis.Cmdable, lease *lock.Lease, interval time.Duration, log *zap.Logger) *Maintenance {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Maintenance{store: st, redis: rdb, lease: lease, interval: interval, log: log}
}

// Run ticks until the context is cancelled.
func (m *Maintenance) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := m.tick(ctx); err != nil {
				m.log.Warn("maintenance tick failed", zap.Error(err))
			}
		}
	}
}

func (m *Maintenance) tick(ctx context.Context) error {
	acquired, err := m.lease.TryAcquire(ctx)
	if err != nil {
		return err
	}
	if !acquired {
		return nil
	}
	defer func() {
		if err := m.lease.Release(ctx); err != nil {
			m.log.Warn("failed to release maintenance lock", zap.Error(err))
		}
	}()

	return m.publishCheckpoints(ctx)
}

func (m *Maintenance) publishCheckpoints(ctx context.Context) error {
	cps, err := m.store.ListCheckpoints(ctx)
	if err != nil {
		return fmt.Errorf("failed to list checkpoints: %w", err)
	}
	if len(cps) == 0 {
		return nil
	}

	fields := make(map[string]any, len(cps))
	for _, cp := range cps {
		fields[cp.Tablename] = strconv.FormatUint(cp.LastCheckpoint, 10)
	}
	if err := m.redis.HSet(ctx, checkpointsHashKey, fields).Err(); err != nil {
		return fmt.Errorf("failed to publish checkpoints: %w", err)
	}
	return nil
}

// Package worker runs the indexing loops. Each stream has exactly one
// writer goroutine that walks heights in order, fetches batches from
// whichever chain owns the height, and hands them to the replay engine.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/openaudio/discovery-indexer/internal/chains"
	"github.com/openaudio/discovery-indexer/internal/domain"
	"github.com/openaudio/discovery-indexer/internal/ratelimit"
	"github.com/openaudio/discovery-indexer/internal/replayer"
	"github.com/openaudio/discovery-indexer/internal/store"
)

// Params configures a stream worker.
type Params struct {
	Stream       string
	Store        store.Store
	Router       *chains.Router
	Orchestrator *replayer.Orchestrator
	// StartHeight is where a fresh deployment with no checkpoint begins.
	StartHeight uint64
	// PollInterval is how long to idle when caught up with the tip.
	PollInterval time.Duration
	// FetchRetryBudget bounds how long a single block fetch is retried
	// before the loop gives up and starts the height over.
	FetchRetryBudget time.Duration
	// Limiter is optional; when set, block fetches are rate limited per
	// adapter so a fleet stays under the RPC provider's quota.
	Limiter *ratelimit.Limiter
	Logger  *zap.Logger
}

// Worker is the single writer for one stream.
type Worker struct {
	stream       string
	store        store.Store
	router       *chains.Router
	orchestrator *replayer.Orchestrator
	startHeight  uint64
	pollInterval time.Duration
	retryBudget  time.Duration
	limiter      *ratelimit.Limiter
	log          *zap.Logger
}

// New creates a stream worker.
func New(p Params) (*Worker, error) {
	if p.Stream == "" || p.Store == nil || p.Router == nil || p.Orchestrator == nil {
		return nil, errors.New("worker requires a stream, store, router and orchestrator")
	}
	if p.PollInterval <= 0 {
		p.PollInterval = 2 * time.Second
	}
	if p.FetchRetryBudget <= 0 {
		p.FetchRetryBudget = 2 * time.Minute
	}
	log := p.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{
		stream:       p.Stream,
		store:        p.Store,
		router:       p.Router,
		orchestrator: p.Orchestrator,
		startHeight:  p.StartHeight,
		pollInterval: p.PollInterval,
		retryBudget:  p.FetchRetryBudget,
		limiter:      p.Limiter,
		log:          log.With(zap.String("stream", p.Stream)),
	}, nil
}

// Run walks heights until the context is cancelled. The checkpoint only
// advances inside a successful block commit, so any failure leaves the
// loop retrying the same height; heights are never abandoned.
func (w *Worker) Run(ctx context.Context) error {
	for {
		if err := w.runOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			w.log.Error(err.Error())
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(w.pollInterval):
		}
	}
}

// runOnce processes everything between the checkpoint and the tip.
func (w *Worker) runOnce(ctx context.Context) error {
	checkpoint, err := w.store.GetCheckpoint(ctx, w.stream)
	if err != nil {
		return fmt.Errorf("failed to read checkpoint: %w", err)
	}

	next := checkpoint + 1
	if next < w.startHeight {
		next = w.startHeight
	}

	latest, err := w.router.LatestAvailableHeight(ctx)
	if err != nil {
		return fmt.Errorf("failed to read chain tip: %w", err)
	}

	for height := next; height <= latest; height++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		adapter, err := w.router.AdapterFor(height)
		if err != nil {
			return err
		}

		batch, err := w.fetchBatch(ctx, adapter, height)
		if err != nil {
			return fmt.Errorf("failed to fetch block %d from %s: %w", height, adapter.Name(), err)
		}

		if err := w.orchestrator.ProcessBlock(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

// fetchBatch retries transient fetch failures with exponential backoff.
// The retry budget is bounded so a dead upstream eventually surfaces as
// an error instead of hanging the loop silently.
func (w *Worker) fetchBatch(ctx context.Context, adapter chains.Adapter, height uint64) (*domain.BlockBatch, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 10 * time.Second
	policy.MaxElapsedTime = w.retryBudget

	var batch *domain.BlockBatch
	op := func() error {
		if w.limiter != nil {
			if err := w.limiter.Wait(ctx, adapter.Name()); err != nil {
				return backoff.Permanent(err)
			}
		}
		var err error
		batch, err = adapter.GetBatchForBlock(ctx, height)
		return err
	}
	notify := func(err error, wait time.Duration) {
		w.log.Warn("block fetch failed, retrying",
			zap.Uint64("block_number", height),
			zap.String("adapter", adapter.Name()),
			zap.Duration("wait", wait),
			zap.Error(err))
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(policy, ctx), notify); err != nil {
		return nil, err
	}
	return batch, nil
}

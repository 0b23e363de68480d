// Package replayer is the transaction replay engine. It turns one
// block's manage-entity transactions into staged row versions and
// commits them atomically, deterministically enough that every node
// replaying the same blocks converges on identical tables.
package replayer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/openaudio/discovery-indexer/internal/challenge"
	"github.com/openaudio/discovery-indexer/internal/domain"
	"github.com/openaudio/discovery-indexer/internal/replayer/entities"
	"github.com/openaudio/discovery-indexer/internal/store"
	"github.com/openaudio/discovery-indexer/internal/store/schema"
)

// SkipVerifier runs the asynchronous peer consensus check on a skip
// that came from an unexpected failure rather than a clean validation
// rejection. Implementations own their deadline and error handling; the
// replay path never waits on them.
type SkipVerifier interface {
	VerifySkip(blocknumber uint64, blockhash, txhash, message string)
}

// Params configures an Orchestrator.
type Params struct {
	Store  store.Store
	Stream string
	// Verifier is optional; without it unexpected failures are still
	// skipped, just never upgraded to network-confirmed.
	Verifier SkipVerifier
	Logger   *zap.Logger
}

// Orchestrator replays block batches for one stream. It is a
// single-writer component: one goroutine per stream calls ProcessBlock
// in ascending height order.
type Orchestrator struct {
	store    store.Store
	stream   string
	registry map[entities.DispatchKey]entities.Handler
	verifier SkipVerifier
	log      *zap.Logger
}

// New creates an orchestrator for a stream.
func New(p Params) (*Orchestrator, error) {
	if p.Store == nil {
		return nil, errors.New("replayer requires a store")
	}
	if p.Stream == "" {
		return nil, errors.New("replayer requires a stream name")
	}
	log := p.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		store:    p.Store,
		stream:   p.Stream,
		registry: entities.Registry(),
		verifier: p.Verifier,
		log:      log.With(zap.String("stream", p.Stream)),
	}, nil
}

// ProcessBlock replays one batch and commits the result. Transactions
// run strictly in batch order; a failed transaction is recorded in the
// skip ledger and never blocks the rest of the block. Only an error
// from the snapshot load or the commit itself propagates, in which case
// nothing was written and the caller retries the same height.
func (o *Orchestrator) ProcessBlock(ctx context.Context, batch *domain.BlockBatch) error {
	start := time.Now()

	snap, err := o.store.LoadSnapshot(ctx, collectRefs(batch.Txs))
	if err != nil {
		return fmt.Errorf("failed to load snapshot for block %d: %w", batch.Height, err)
	}

	stager := store.NewStager(snap)
	events := challenge.NewQueue(batch.Height, batch.Timestamp)

	var skipped []*schema.SkippedTransaction
	var suspicious []*schema.SkippedTransaction
	applied := 0

	for i := range batch.Txs {
		tx := &batch.Txs[i]
		env := &entities.Env{
			Meta: schema.BlockMeta{
				Blocknumber: batch.Height,
				Blockhash:   batch.Hash,
				Txhash:      tx.TxHash,
				Slot:        batch.Slot,
				Timestamp:   batch.Timestamp,
			},
			Stager: stager,
			Events: events,
		}

		err := o.applyTx(env, tx)
		if err == nil {
			applied++
			txsProcessed.WithLabelValues(o.stream, outcomeApplied).Inc()
			continue
		}

		skip := &schema.SkippedTransaction{
			Blocknumber: batch.Height,
			Blockhash:   batch.Hash,
			Txhash:      tx.TxHash,
			Message:     err.Error(),
			Level:       schema.SkipLevelUnconfirmed,
		}
		skipped = append(skipped, skip)

		if domain.IsRejection(err) {
			txsProcessed.WithLabelValues(o.stream, outcomeRejected).Inc()
			o.log.Debug("transaction rejected",
				zap.Uint64("block_number", batch.Height),
				zap.String("txhash", tx.TxHash),
				zap.String("reason", err.Error()))
			continue
		}

		txsProcessed.WithLabelValues(o.stream, outcomeFailed).Inc()
		suspicious = append(suspicious, skip)
		o.log.Error(err.Error(),
			zap.Uint64("block_number", batch.Height),
			zap.String("txhash", tx.TxHash))
	}

	commit := &store.BlockCommit{
		Stream:  o.stream,
		Height:  batch.Height,
		Staged:  stager.Staged(),
		Skipped: skipped,
		Events:  events.Flush(),
	}
	if err := o.store.CommitBlock(ctx, commit); err != nil {
		return fmt.Errorf("failed to commit block %d: %w", batch.Height, err)
	}

	blocksProcessed.WithLabelValues(o.stream).Inc()
	blockProcessSeconds.WithLabelValues(o.stream).Observe(time.Since(start).Seconds())
	o.log.Info("block committed",
		zap.Uint64("block_number", batch.Height),
		zap.Int("txs", len(batch.Txs)),
		zap.Int("applied", applied),
		zap.Int("skipped", len(skipped)),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()))

	// A skip caused by anything other than a protocol rejection might be
	// a local bug. Ask the network; if a quorum of peers failed the same
	// transaction the skip is confirmed, otherwise it stays flagged for
	// an operator to look at.
	if o.verifier != nil {
		for _, skip := range suspicious {
			go o.verifier.VerifySkip(skip.Blocknumber, skip.Blockhash, skip.Txhash, skip.Message)
		}
	}

	return nil
}

// applyTx routes one transaction to its handler. A panicking handler
// must not take down the batch: the panic becomes a non-rejection
// error, which lands the transaction in the skip ledger and routes it
// through the peer consensus check like any other unexpected failure.
func (o *Orchestrator) applyTx(env *entities.Env, tx *domain.ManageEntityTx) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked for %s %s: %v", tx.Action, tx.EntityType, r)
		}
	}()

	if !tx.Decoded() {
		return domain.Rejectf("transaction could not be decoded")
	}
	handler, ok := o.registry[entities.DispatchKey{Entity: tx.EntityType, Action: tx.Action}]
	if !ok {
		return domain.Rejectf("unsupported operation %s %s", tx.Action, tx.EntityType)
	}
	return handler(env, tx)
}

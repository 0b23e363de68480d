package consensus

import (
	"context"

	"go.uber.org/zap"

	"github.com/openaudio/discovery-indexer/internal/store"
)

// Verifier runs the consensus check for one skipped transaction and
// upgrades the ledger entry when the peers agree. It satisfies the
// replay engine's SkipVerifier interface and is always called on its
// own goroutine, so it owns its deadline.
type Verifier struct {
	client *Client
	store  store.Store
	log    *zap.Logger
}

// NewVerifier creates a verifier.
func NewVerifier(client *Client, st store.Store, log *zap.Logger) *Verifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Verifier{client: client, store: st, log: log}
}

// VerifySkip checks one skip against the peer set. Failures here are
// logged and dropped; the ledger entry simply stays unconfirmed and an
// operator (or a later retry) deals with it.
func (v *Verifier) VerifySkip(blocknumber uint64, blockhash, txhash, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), v.client.Timeout())
	defer cancel()

	log := v.log.With(
		zap.Uint64("block_number", blocknumber),
		zap.String("txhash", txhash))

	confirmed, err := v.client.CheckTransaction(ctx, blocknumber, blockhash, txhash)
	if err != nil {
		log.Warn("consensus check failed", zap.Error(err))
		return
	}
	if !confirmed {
		log.Warn("peers did not confirm skip, possible local indexing bug",
			zap.String("message", message))
		return
	}

	skip, err := v.store.GetSkipped(ctx, blocknumber, blockhash, txhash)
	if err != nil {
		log.Warn("failed to look up skip ledger entry", zap.Error(err))
		return
	}
	if skip == nil {
		return
	}
	if err := v.store.ConfirmSkip(ctx, skip.ID); err != nil {
		log.Warn("failed to confirm skip", zap.Error(err))
		return
	}
	log.Info("skip confirmed by peer quorum")
}

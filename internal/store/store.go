package store

import (
	"context"

	"github.com/openaudio/discovery-indexer/internal/domain"
	"github.com/openaudio/discovery-indexer/internal/store/schema"
)

// PairRef is a two-id natural key used to bulk-load join entities.
type PairRef struct {
	A int32
	B int32
}

// ItemRef is a (user, item) natural key for reposts and saves, which
// are additionally discriminated by target type in the row itself.
type ItemRef struct {
	UserID int32
	ItemID int32
}

// GrantRef is the natural key of a delegation grant.
type GrantRef struct {
	GranteeAddress string
	UserID         int32
}

// TipRef is the natural key of a tip reaction.
type TipRef struct {
	UserID    int32
	ReactedTo string
}

// FetchRefs lists every entity a transaction batch references. The
// store loads each populated slice with one query and folds the result
// into a Snapshot.
type FetchRefs struct {
	Users         []int32
	Tracks        []int32
	Playlists     []int32
	Follows       []PairRef // (follower, followee)
	Reposts       []ItemRef
	Saves         []ItemRef
	Subscriptions []PairRef // (subscriber, user)
	Mutes         []PairRef // (user, muted user)
	PlaylistSeens []PairRef // (user, playlist)
	Grants        []GrantRef
	Apps          []string
	Tips          []TipRef
}

// BlockCommit is everything one block's replay produced, written to the
// database in a single transaction: new entity row versions, skipped
// transaction ledger entries, challenge outbox events and the
// checkpoint advance. Commit-or-nothing.
type BlockCommit struct {
	Stream  string
	Height  uint64
	Staged  map[domain.EntityType]map[string][]schema.Versioned
	Skipped []*schema.SkippedTransaction
	Events  []*schema.ChallengeEvent
}

// Store defines the database operations the replay engine depends on.
type Store interface {
	// LoadSnapshot bulk-loads the current rows for every referenced entity.
	LoadSnapshot(ctx context.Context, refs *FetchRefs) (*Snapshot, error)
	// CommitBlock writes one block's results in a single transaction.
	// Re-committing an already committed block is a safe no-op.
	CommitBlock(ctx context.Context, commit *BlockCommit) error
	// GetCheckpoint returns the last processed height for a stream, 0 if none.
	GetCheckpoint(ctx context.Context, tablename string) (uint64, error)
	// ListCheckpoints returns all stream checkpoints.
	ListCheckpoints(ctx context.Context) ([]schema.IndexingCheckpoint, error)
	// GetSkipped looks up a ledger entry by chain position.
	GetSkipped(ctx context.Context, blocknumber uint64, blockhash, txhash string) (*schema.SkippedTransaction, error)
	// ConfirmSkip upgrades a ledger entry to the network-confirmed level.
	ConfirmSkip(ctx context.Context, id uint64) error
	// ListChallengeEvents returns up to limit outbox events, oldest first.
	ListChallengeEvents(ctx context.Context, limit int) ([]*schema.ChallengeEvent, error)
	// DeleteChallengeEvents removes published outbox events.
	DeleteChallengeEvents(ctx context.Context, ids []string) error
}

package schema

import (
	"time"

	"gorm.io/datatypes"
)

// SkipLevel classifies a skipped transaction.
type SkipLevel string

const (
	// SkipLevelUnconfirmed means only this node decided to skip;
	// no peer quorum has vouched for the decision yet.
	SkipLevelUnconfirmed SkipLevel = "unconfirmed"
	// SkipLevelNetwork means a quorum of peers failed the identical
	// transaction, so the skip cannot be a local decode bug.
	SkipLevelNetwork SkipLevel = "network"
)

// SkippedTransaction represents the skipped_transactions table: the
// append-only ledger of transactions the replayer declined to apply.
// Rows are created once and never mutated except for the level upgrade
// after a successful peer consensus check.
type SkippedTransaction struct {
	// ID is the internal database primary key
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// Blocknumber is the adjusted height of the containing block
	Blocknumber uint64 `gorm:"column:blocknumber;not null;uniqueIndex:idx_skipped_position,priority:1"`
	// Blockhash is the hash of the containing block
	Blockhash string `gorm:"column:blockhash;not null;type:text"`
	// Txhash is the transaction that was skipped
	Txhash string `gorm:"column:txhash;not null;type:text;uniqueIndex:idx_skipped_position,priority:2"`
	// Message is part of the dedupe key because one chain transaction
	// can carry several manage-entity events sharing a txhash
	Message string `gorm:"column:message;type:text;uniqueIndex:idx_skipped_position,priority:3"`
	// Level records whether peers confirmed the skip
	Level SkipLevel `gorm:"column:level;not null;type:text;default:unconfirmed"`
	// CreatedAt is when this node recorded the skip
	CreatedAt time.Time `gorm:"column:created_at;not null;autoCreateTime"`
}

// TableName specifies the table name for the SkippedTransaction model
func (SkippedTransaction) TableName() string {
	return "skipped_transactions"
}

// IndexingCheckpoint represents the indexing_checkpoints table: one row
// per logical stream holding the last fully processed height. Strictly
// monotonic; read at the start of each batch, written inside the batch
// commit transaction.
type IndexingCheckpoint struct {
	// Tablename is the logical stream name (e.g. "entity_manager")
	Tablename string `gorm:"column:tablename;primaryKey;type:text"`
	// LastCheckpoint is the last fully processed adjusted height
	LastCheckpoint uint64 `gorm:"column:last_checkpoint;not null"`
	// UpdatedAt is when the checkpoint last advanced
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for the IndexingCheckpoint model
func (IndexingCheckpoint) TableName() string {
	return "indexing_checkpoints"
}

// ChallengeEvent represents the challenge_events table: the
// transactional outbox for reward-challenge signals. Rows are inserted
// in the same transaction as the entity rows they correspond to, then
// drained to the message broker by the challenge relay and deleted
// after a successful publish.
type ChallengeEvent struct {
	// ID is a node-generated event identifier
	ID string `gorm:"column:id;primaryKey;type:text"`
	// EventType names the challenge event (e.g. "follow", "repost")
	EventType string `gorm:"column:event_type;not null;type:text"`
	// BlockNumber is the adjusted height that produced the event
	BlockNumber uint64 `gorm:"column:block_number;not null"`
	// BlockDatetime is the timestamp of that block
	BlockDatetime time.Time `gorm:"column:block_datetime;not null"`
	// UserID is the user the challenge progress belongs to
	UserID int32 `gorm:"column:user_id;not null;index"`
	// Extra carries event-specific payload fields
	Extra datatypes.JSON `gorm:"column:extra;type:jsonb"`
	// CreatedAt is when the event was enqueued
	CreatedAt time.Time `gorm:"column:created_at;not null;autoCreateTime"`
}

// TableName specifies the table name for the ChallengeEvent model
func (ChallengeEvent) TableName() string {
	return "challenge_events"
}

package schema

import (
	"time"

	"github.com/openaudio/discovery-indexer/internal/domain"
)

// BlockMeta is the chain position stamped onto every row a block
// produces. Two nodes replaying the same block must stamp identical
// values, so everything here comes from the block batch itself.
type BlockMeta struct {
	Blocknumber uint64
	Blockhash   string
	Txhash      string
	Slot        uint64
	Timestamp   time.Time
}

// Versioned is implemented by every bitemporal entity model. A logical
// entity has many physical rows; exactly one carries is_current = true.
// Mutation never updates a row in place: the old current row is flipped
// to is_current = false and a new row is inserted.
type Versioned interface {
	// Key returns the natural-key snapshot identifier for the logical entity.
	Key() string
	// Type returns the entity type this row belongs to.
	Type() domain.EntityType
	// Current reports whether this is the is_current row.
	Current() bool
	// SetCurrent flips the is_current flag.
	SetCurrent(current bool)
	// Deleted reports whether this row is a tombstone.
	Deleted() bool
	// SetDeleted flips the tombstone flag.
	SetDeleted(deleted bool)
	// TxHash returns the transaction that produced this row version.
	TxHash() string
	// CopyForward clones the row onto a new chain position: every field
	// carries over except blocknumber, blockhash, txhash, slot and
	// updated_at, which take the new block's values, and is_current,
	// which is true on the clone. Deterministic: identical inputs yield
	// identical clones on every node.
	CopyForward(meta BlockMeta) Versioned
}

// stamp applies a block position to the embedded chain columns of a row.
func (b *BlockFields) stamp(meta BlockMeta) {
	b.Blockhash = meta.Blockhash
	b.Blocknumber = meta.Blocknumber
	b.Txhash = meta.Txhash
	b.Slot = meta.Slot
	b.UpdatedAt = meta.Timestamp
	b.IsCurrent = true
}

// BlockFields are the chain-position columns shared by every versioned
// table. The composite primary key of each table includes the natural
// key plus (is_current, txhash), which is what makes a duplicate replay
// of the same block a primary-key no-op instead of divergent state.
type BlockFields struct {
	// Blockhash is the hash of the block that produced this row version
	Blockhash string `gorm:"column:blockhash;not null;type:text"`
	// Blocknumber is the cutover-adjusted height that produced this row version
	Blocknumber uint64 `gorm:"column:blocknumber;not null;index"`
	// Slot is the raw chain ordinal (equals Blocknumber for EVM sources)
	Slot uint64 `gorm:"column:slot;not null;default:0"`
	// Txhash is the transaction that produced this row version
	Txhash string `gorm:"column:txhash;primaryKey;type:text"`
	// IsCurrent marks the single live version of the logical entity
	IsCurrent bool `gorm:"column:is_current;primaryKey"`
	// IsDelete marks a tombstone version
	IsDelete bool `gorm:"column:is_delete;not null;default:false"`
	// CreatedAt is the block timestamp of the first version
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	// UpdatedAt is the block timestamp of this version
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

// Current reports whether this is the is_current row.
func (b *BlockFields) Current() bool { return b.IsCurrent }

// SetCurrent flips the is_current flag.
func (b *BlockFields) SetCurrent(current bool) { b.IsCurrent = current }

// Deleted reports whether this row is a tombstone.
func (b *BlockFields) Deleted() bool { return b.IsDelete }

// SetDeleted flips the tombstone flag.
func (b *BlockFields) SetDeleted(deleted bool) { b.IsDelete = deleted }

// TxHash returns the transaction that produced this row version.
func (b *BlockFields) TxHash() string { return b.Txhash }

// NewBlockFields builds the chain columns for a freshly created entity.
func NewBlockFields(meta BlockMeta) BlockFields {
	return BlockFields{
		Blockhash:   meta.Blockhash,
		Blocknumber: meta.Blocknumber,
		Slot:        meta.Slot,
		Txhash:      meta.Txhash,
		IsCurrent:   true,
		IsDelete:    false,
		CreatedAt:   meta.Timestamp,
		UpdatedAt:   meta.Timestamp,
	}
}

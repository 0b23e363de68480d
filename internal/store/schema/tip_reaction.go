package schema

import (
	"fmt"

	"github.com/openaudio/discovery-indexer/internal/domain"
)

// TipReaction represents the tip_reactions table: an emoji-style
// reaction a user attaches to a tip they received, keyed by the tip's
// transaction signature.
type TipReaction struct {
	// UserID is the user reacting
	UserID int32 `gorm:"column:user_id;primaryKey"`
	// ReactedTo is the tip transaction signature being reacted to
	ReactedTo string `gorm:"column:reacted_to;primaryKey;type:text"`
	// ReactionValue selects which reaction was used
	ReactionValue int32 `gorm:"column:reaction_value;not null"`

	BlockFields
}

// TableName specifies the table name for the TipReaction model
func (TipReaction) TableName() string {
	return "tip_reactions"
}

func (t *TipReaction) Key() string {
	return fmt.Sprintf("%d:%s", t.UserID, t.ReactedTo)
}
func (t *TipReaction) Type() domain.EntityType { return domain.EntityTypeTip }

// CopyForward clones the reaction onto a new chain position.
func (t *TipReaction) CopyForward(meta BlockMeta) Versioned {
	cp := *t
	cp.stamp(meta)
	return &cp
}

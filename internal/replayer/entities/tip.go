package entities

import (
	"fmt"

	"github.com/openaudio/discovery-indexer/internal/domain"
	"github.com/openaudio/discovery-indexer/internal/store/schema"
)

type tipReactionMetadata struct {
	ReactedTo     string `json:"reacted_to"`
	ReactionValue int32  `json:"reaction_value"`
}

// reactToTip attaches a reaction to a tip the user received, or changes
// an earlier reaction to a new value.
func reactToTip(env *Env, tx *domain.ManageEntityTx) error {
	if _, err := requireUser(env, tx.UserID); err != nil {
		return err
	}
	if err := requireSigner(env, tx, tx.UserID); err != nil {
		return err
	}

	var md tipReactionMetadata
	if err := parseMetadata(tx, &md); err != nil {
		return err
	}
	if md.ReactedTo == "" {
		return domain.Rejectf("tip reaction requires a tip signature")
	}
	if md.ReactionValue <= 0 {
		return domain.Rejectf("tip reaction value must be positive")
	}

	key := fmt.Sprintf("%d:%s", tx.UserID, md.ReactedTo)
	if existing, ok := env.Snap().Get(domain.EntityTypeTip, key); ok && !existing.Deleted() {
		prior := existing.(*schema.TipReaction)
		if prior.ReactionValue == md.ReactionValue {
			return nil
		}
		next := prior.CopyForward(env.Meta).(*schema.TipReaction)
		next.ReactionValue = md.ReactionValue
		env.Stager.Stage(next)
		return nil
	}

	env.Stager.Stage(&schema.TipReaction{
		UserID:        tx.UserID,
		ReactedTo:     md.ReactedTo,
		ReactionValue: md.ReactionValue,
		BlockFields:   schema.NewBlockFields(env.Meta),
	})
	return nil
}

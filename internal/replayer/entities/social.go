package entities

import (
	"github.com/openaudio/discovery-indexer/internal/challenge"
	"github.com/openaudio/discovery-indexer/internal/domain"
	"github.com/openaudio/discovery-indexer/internal/store/schema"
)

// Join entities move through a three-state machine: non-existent,
// current-active, current-deleted. A create is legal from non-existent
// (fresh row) or current-deleted (copy-forward reviving the row); a
// delete is legal only from current-active (copy-forward tombstone).

// reviveOrCreate implements the create transition for a join entity.
// fresh builds the row when no prior version exists.
func reviveOrCreate(env *Env, entityType domain.EntityType, key string, fresh func() schema.Versioned) error {
	existing, ok := env.Snap().Get(entityType, key)
	if !ok {
		env.Stager.Stage(fresh())
		return nil
	}
	if !existing.Deleted() {
		return domain.Rejectf("%s %s already exists", entityType, key)
	}
	next := existing.CopyForward(env.Meta)
	next.SetDeleted(false)
	env.Stager.Stage(next)
	return nil
}

// tombstone implements the delete transition for a join entity.
func tombstone(env *Env, entityType domain.EntityType, key string) error {
	existing, ok := env.Snap().Get(entityType, key)
	if !ok || existing.Deleted() {
		return domain.Rejectf("%s %s does not exist", entityType, key)
	}
	next := existing.CopyForward(env.Meta)
	next.SetDeleted(true)
	env.Stager.Stage(next)
	return nil
}

// requireSocialPrereqs checks the acting user, the signer and the
// target user for the user-to-user social actions.
func requireSocialPrereqs(env *Env, tx *domain.ManageEntityTx) error {
	if tx.UserID == tx.EntityID {
		return domain.Rejectf("user %d cannot target themselves", tx.UserID)
	}
	if _, err := requireUser(env, tx.UserID); err != nil {
		return err
	}
	if _, err := requireUser(env, tx.EntityID); err != nil {
		return err
	}
	return requireSigner(env, tx, tx.UserID)
}

func followUser(env *Env, tx *domain.ManageEntityTx) error {
	if err := requireSocialPrereqs(env, tx); err != nil {
		return err
	}
	key := domain.SocialKey(tx.UserID, domain.EntityTypeUser, tx.EntityID)
	err := reviveOrCreate(env, domain.EntityTypeFollow, key, func() schema.Versioned {
		return &schema.Follow{
			FollowerUserID: tx.UserID,
			FolloweeUserID: tx.EntityID,
			BlockFields:    schema.NewBlockFields(env.Meta),
		}
	})
	if err != nil {
		return err
	}
	env.Events.Dispatch(challenge.EventFollow, tx.TxHash, tx.UserID, map[string]any{
		"followee_user_id": tx.EntityID,
	})
	return nil
}

func unfollowUser(env *Env, tx *domain.ManageEntityTx) error {
	if err := requireSocialPrereqs(env, tx); err != nil {
		return err
	}
	key := domain.SocialKey(tx.UserID, domain.EntityTypeUser, tx.EntityID)
	return tombstone(env, domain.EntityTypeFollow, key)
}

func subscribeUser(env *Env, tx *domain.ManageEntityTx) error {
	if err := requireSocialPrereqs(env, tx); err != nil {
		return err
	}
	key := domain.SocialKey(tx.UserID, domain.EntityTypeUser, tx.EntityID)
	return reviveOrCreate(env, domain.EntityTypeSubscription, key, func() schema.Versioned {
		return &schema.Subscription{
			SubscriberID: tx.UserID,
			UserID:       tx.EntityID,
			BlockFields:  schema.NewBlockFields(env.Meta),
		}
	})
}

func unsubscribeUser(env *Env, tx *domain.ManageEntityTx) error {
	if err := requireSocialPrereqs(env, tx); err != nil {
		return err
	}
	key := domain.SocialKey(tx.UserID, domain.EntityTypeUser, tx.EntityID)
	return tombstone(env, domain.EntityTypeSubscription, key)
}

func muteUser(env *Env, tx *domain.ManageEntityTx) error {
	if err := requireSocialPrereqs(env, tx); err != nil {
		return err
	}
	key := domain.SocialKey(tx.UserID, domain.EntityTypeUser, tx.EntityID)
	return reviveOrCreate(env, domain.EntityTypeMutedUser, key, func() schema.Versioned {
		return &schema.MutedUser{
			UserID:      tx.UserID,
			MutedUserID: tx.EntityID,
			BlockFields: schema.NewBlockFields(env.Meta),
		}
	})
}

func unmuteUser(env *Env, tx *domain.ManageEntityTx) error {
	if err := requireSocialPrereqs(env, tx); err != nil {
		return err
	}
	key := domain.SocialKey(tx.UserID, domain.EntityTypeUser, tx.EntityID)
	return tombstone(env, domain.EntityTypeMutedUser, key)
}

// targetType maps the entity type a repost or save names to the row
// discriminator. Albums are playlists at the storage level.
func targetType(entityType domain.EntityType) schema.TargetType {
	if entityType == domain.EntityTypeTrack {
		return schema.TargetTrack
	}
	return schema.TargetPlaylist
}

// requireTarget rejects unless the reposted or saved item is live.
func requireTarget(env *Env, entityType domain.EntityType, entityID int32) error {
	if entityType == domain.EntityTypeTrack {
		track, ok := trackByID(env, entityID)
		if !ok || track.Deleted() {
			return domain.Rejectf("track %d does not exist", entityID)
		}
		return nil
	}
	playlist, ok := playlistByID(env, entityID)
	if !ok || playlist.Deleted() {
		return domain.Rejectf("playlist %d does not exist", entityID)
	}
	return nil
}

func repostItem(env *Env, tx *domain.ManageEntityTx) error {
	if _, err := requireUser(env, tx.UserID); err != nil {
		return err
	}
	if err := requireSigner(env, tx, tx.UserID); err != nil {
		return err
	}
	if err := requireTarget(env, tx.EntityType, tx.EntityID); err != nil {
		return err
	}
	key := domain.SocialKey(tx.UserID, targetType(tx.EntityType).EntityType(), tx.EntityID)
	err := reviveOrCreate(env, domain.EntityTypeRepost, key, func() schema.Versioned {
		return &schema.Repost{
			UserID:       tx.UserID,
			RepostItemID: tx.EntityID,
			RepostType:   targetType(tx.EntityType),
			BlockFields:  schema.NewBlockFields(env.Meta),
		}
	})
	if err != nil {
		return err
	}
	env.Events.Dispatch(challenge.EventRepost, tx.TxHash, tx.UserID, map[string]any{
		"repost_item_id": tx.EntityID,
		"repost_type":    string(targetType(tx.EntityType)),
	})
	return nil
}

func unrepostItem(env *Env, tx *domain.ManageEntityTx) error {
	if _, err := requireUser(env, tx.UserID); err != nil {
		return err
	}
	if err := requireSigner(env, tx, tx.UserID); err != nil {
		return err
	}
	key := domain.SocialKey(tx.UserID, targetType(tx.EntityType).EntityType(), tx.EntityID)
	return tombstone(env, domain.EntityTypeRepost, key)
}

func saveItem(env *Env, tx *domain.ManageEntityTx) error {
	if _, err := requireUser(env, tx.UserID); err != nil {
		return err
	}
	if err := requireSigner(env, tx, tx.UserID); err != nil {
		return err
	}
	if err := requireTarget(env, tx.EntityType, tx.EntityID); err != nil {
		return err
	}
	key := domain.SocialKey(tx.UserID, targetType(tx.EntityType).EntityType(), tx.EntityID)
	err := reviveOrCreate(env, domain.EntityTypeSave, key, func() schema.Versioned {
		return &schema.Save{
			UserID:      tx.UserID,
			SaveItemID:  tx.EntityID,
			SaveType:    targetType(tx.EntityType),
			BlockFields: schema.NewBlockFields(env.Meta),
		}
	})
	if err != nil {
		return err
	}
	env.Events.Dispatch(challenge.EventFavorite, tx.TxHash, tx.UserID, map[string]any{
		"save_item_id": tx.EntityID,
		"save_type":    string(targetType(tx.EntityType)),
	})
	return nil
}

func unsaveItem(env *Env, tx *domain.ManageEntityTx) error {
	if _, err := requireUser(env, tx.UserID); err != nil {
		return err
	}
	if err := requireSigner(env, tx, tx.UserID); err != nil {
		return err
	}
	key := domain.SocialKey(tx.UserID, targetType(tx.EntityType).EntityType(), tx.EntityID)
	return tombstone(env, domain.EntityTypeSave, key)
}

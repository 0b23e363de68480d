package entities

import (
	"fmt"

	"github.com/openaudio/discovery-indexer/internal/domain"
	"github.com/openaudio/discovery-indexer/internal/store/schema"
)

// viewNotifications marks the user's notifications as seen at the block
// timestamp. A second view in the same block lands on the same marker
// and is dropped quietly.
func viewNotifications(env *Env, tx *domain.ManageEntityTx) error {
	if _, err := requireUser(env, tx.UserID); err != nil {
		return err
	}
	if err := requireSigner(env, tx, tx.UserID); err != nil {
		return err
	}

	key := fmt.Sprintf("%d:%d", tx.UserID, env.Meta.Timestamp.Unix())
	if _, ok := env.Snap().Get(domain.EntityTypeNotificationSeen, key); ok {
		return nil
	}

	env.Stager.Stage(&schema.NotificationSeen{
		UserID:      tx.UserID,
		SeenAt:      env.Meta.Timestamp,
		BlockFields: schema.NewBlockFields(env.Meta),
	})
	return nil
}

// viewPlaylist records that the user caught up on a playlist's updates.
// Repeat views copy the marker forward with a fresh timestamp.
func viewPlaylist(env *Env, tx *domain.ManageEntityTx) error {
	if _, err := requireUser(env, tx.UserID); err != nil {
		return err
	}
	if err := requireSigner(env, tx, tx.UserID); err != nil {
		return err
	}
	playlist, ok := playlistByID(env, tx.EntityID)
	if !ok || playlist.Deleted() {
		return domain.Rejectf("playlist %d does not exist", tx.EntityID)
	}

	key := domain.SocialKey(tx.UserID, domain.EntityTypePlaylist, tx.EntityID)
	if existing, ok := env.Snap().Get(domain.EntityTypePlaylistSeen, key); ok {
		next := existing.CopyForward(env.Meta).(*schema.PlaylistSeen)
		next.SeenAt = env.Meta.Timestamp
		env.Stager.Stage(next)
		return nil
	}

	env.Stager.Stage(&schema.PlaylistSeen{
		UserID:      tx.UserID,
		PlaylistID:  tx.EntityID,
		SeenAt:      env.Meta.Timestamp,
		BlockFields: schema.NewBlockFields(env.Meta),
	})
	return nil
}

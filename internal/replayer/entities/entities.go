// Package entities holds the per-entity-type handlers the replay engine
// dispatches manage-entity transactions to. Each handler validates a
// transaction against the batch snapshot and stages the row versions it
// produces; none of them touch the database directly.
package entities

import (
	"encoding/json"

	"github.com/openaudio/discovery-indexer/internal/auth"
	"github.com/openaudio/discovery-indexer/internal/challenge"
	"github.com/openaudio/discovery-indexer/internal/domain"
	"github.com/openaudio/discovery-indexer/internal/store"
	"github.com/openaudio/discovery-indexer/internal/store/schema"
)

// Env is everything a handler may touch while replaying one block.
type Env struct {
	Meta   schema.BlockMeta
	Stager *store.Stager
	Events *challenge.Queue
}

// Snap returns the batch view, including rows staged earlier in the block.
func (e *Env) Snap() *store.Snapshot { return e.Stager.Snapshot() }

// Handler applies one decoded transaction to the batch state. A
// returned domain.Rejection means the transaction is invalid under
// protocol rules; any other error means something unexpected broke.
type Handler func(env *Env, tx *domain.ManageEntityTx) error

// DispatchKey routes a transaction to its handler. EntityType here is
// the type named in the transaction, which for social actions is the
// target of the action (a Follow names EntityType User).
type DispatchKey struct {
	Entity domain.EntityType
	Action domain.Action
}

// Registry returns the full dispatch table. The set of keys is closed;
// a transaction whose (entity, action) pair is not in the table is
// rejected by the orchestrator rather than guessed at.
func Registry() map[DispatchKey]Handler {
	return map[DispatchKey]Handler{
		{domain.EntityTypeUser, domain.ActionCreate}:      createUser,
		{domain.EntityTypeUser, domain.ActionUpdate}:      updateUser,
		{domain.EntityTypeUser, domain.ActionVerify}:      verifyUser,
		{domain.EntityTypeUser, domain.ActionFollow}:      followUser,
		{domain.EntityTypeUser, domain.ActionUnfollow}:    unfollowUser,
		{domain.EntityTypeUser, domain.ActionSubscribe}:   subscribeUser,
		{domain.EntityTypeUser, domain.ActionUnsubscribe}: unsubscribeUser,
		{domain.EntityTypeUser, domain.ActionMute}:        muteUser,
		{domain.EntityTypeUser, domain.ActionUnmute}:      unmuteUser,

		{domain.EntityTypeTrack, domain.ActionCreate}:   createTrack,
		{domain.EntityTypeTrack, domain.ActionUpdate}:   updateTrack,
		{domain.EntityTypeTrack, domain.ActionDelete}:   deleteTrack,
		{domain.EntityTypeTrack, domain.ActionRepost}:   repostItem,
		{domain.EntityTypeTrack, domain.ActionUnrepost}: unrepostItem,
		{domain.EntityTypeTrack, domain.ActionSave}:     saveItem,
		{domain.EntityTypeTrack, domain.ActionUnsave}:   unsaveItem,

		{domain.EntityTypePlaylist, domain.ActionCreate}:   createPlaylist,
		{domain.EntityTypePlaylist, domain.ActionUpdate}:   updatePlaylist,
		{domain.EntityTypePlaylist, domain.ActionDelete}:   deletePlaylist,
		{domain.EntityTypePlaylist, domain.ActionRepost}:   repostItem,
		{domain.EntityTypePlaylist, domain.ActionUnrepost}: unrepostItem,
		{domain.EntityTypePlaylist, domain.ActionSave}:     saveItem,
		{domain.EntityTypePlaylist, domain.ActionUnsave}:   unsaveItem,

		{domain.EntityTypeNotification, domain.ActionView}:         viewNotifications,
		{domain.EntityTypeNotification, domain.ActionViewPlaylist}: viewPlaylist,

		{domain.EntityTypeGrant, domain.ActionCreate}:  createGrant,
		{domain.EntityTypeGrant, domain.ActionDelete}:  deleteGrant,
		{domain.EntityTypeGrant, domain.ActionApprove}: approveGrant,
		{domain.EntityTypeGrant, domain.ActionReject}:  rejectGrant,

		{domain.EntityTypeDeveloperApp, domain.ActionCreate}: createDeveloperApp,
		{domain.EntityTypeDeveloperApp, domain.ActionDelete}: deleteDeveloperApp,

		{domain.EntityTypeTip, domain.ActionReact}: reactToTip,
	}
}

// requireSigner rejects the transaction unless the signer may act for
// userID, consulting the batch view so a grant approved earlier in the
// same block already counts.
func requireSigner(env *Env, tx *domain.ManageEntityTx, userID int32) error {
	if !auth.IsAuthorized(tx.Signer, userID, env.Snap()) {
		return domain.Rejectf("signer %s is not authorized to act for user %d", tx.Signer, userID)
	}
	return nil
}

// requireUser rejects unless userID is a live user in the batch view.
func requireUser(env *Env, userID int32) (*schema.User, error) {
	user, ok := env.Snap().User(userID)
	if !ok || user.Deleted() {
		return nil, domain.Rejectf("user %d does not exist", userID)
	}
	return user, nil
}

// parseMetadata decodes the transaction metadata payload into out.
func parseMetadata(tx *domain.ManageEntityTx, out any) error {
	if err := json.Unmarshal([]byte(tx.Metadata), out); err != nil {
		return domain.Rejectf("invalid metadata payload: %v", err)
	}
	return nil
}

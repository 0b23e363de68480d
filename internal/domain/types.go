package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EntityType identifies the kind of domain object a manage-entity
// transaction mutates. The set is closed: the replay dispatch table is
// checked against it at startup.
type EntityType string

const (
	EntityTypeUser             EntityType = "User"
	EntityTypeTrack            EntityType = "Track"
	EntityTypePlaylist         EntityType = "Playlist"
	EntityTypeFollow           EntityType = "Follow"
	EntityTypeSave             EntityType = "Save"
	EntityTypeRepost           EntityType = "Repost"
	EntityTypeSubscription     EntityType = "Subscription"
	EntityTypeNotification     EntityType = "Notification"
	EntityTypeNotificationSeen EntityType = "NotificationSeen"
	EntityTypePlaylistSeen     EntityType = "PlaylistSeen"
	EntityTypeMutedUser        EntityType = "MutedUser"
	EntityTypeGrant            EntityType = "Grant"
	EntityTypeDeveloperApp     EntityType = "DeveloperApp"
	EntityTypeTip              EntityType = "Tip"
)

// Action identifies the operation a manage-entity transaction requests.
type Action string

const (
	ActionCreate       Action = "Create"
	ActionUpdate       Action = "Update"
	ActionDelete       Action = "Delete"
	ActionVerify       Action = "Verify"
	ActionFollow       Action = "Follow"
	ActionUnfollow     Action = "Unfollow"
	ActionSave         Action = "Save"
	ActionUnsave       Action = "Unsave"
	ActionRepost       Action = "Repost"
	ActionUnrepost     Action = "Unrepost"
	ActionSubscribe    Action = "Subscribe"
	ActionUnsubscribe  Action = "Unsubscribe"
	ActionView         Action = "View"
	ActionViewPlaylist Action = "ViewPlaylist"
	ActionMute         Action = "Mute"
	ActionUnmute       Action = "Unmute"
	ActionApprove      Action = "Approve"
	ActionReject       Action = "Reject"
	ActionReact        Action = "React"
)

// ManageEntityTx is a single decoded manage-entity transaction.
// A transaction that failed chain-specific decoding is carried with
// empty EntityType/Action so the replay layer can record the skip
// instead of the adapter aborting the whole block fetch.
type ManageEntityTx struct {
	UserID     int32      `json:"user_id"`
	EntityID   int32      `json:"entity_id"`
	EntityType EntityType `json:"entity_type"`
	Action     Action     `json:"action"`
	Metadata   string     `json:"metadata"`
	Signer     string     `json:"signer"`
	TxHash     string     `json:"tx_hash"`
	TxIndex    uint       `json:"tx_index"`
}

// Decoded reports whether the adapter managed to decode this transaction.
func (t *ManageEntityTx) Decoded() bool {
	return t.EntityType != "" && t.Action != ""
}

// BlockBatch is one block's worth of manage-entity transactions, in
// chain order. Height is the cutover-adjusted height; Slot is the raw
// chain ordinal the batch came from.
type BlockBatch struct {
	Height    uint64
	Slot      uint64
	Hash      string
	Timestamp time.Time
	Txs       []ManageEntityTx
}

// NormalizeWallet lowercases a wallet address, going through the
// checksummed form for 0x addresses so equality checks are stable.
func NormalizeWallet(address string) string {
	if strings.HasPrefix(address, "0x") {
		return strings.ToLower(common.HexToAddress(address).Hex())
	}
	return strings.ToLower(address)
}

// UserKey is the snapshot key for a user record.
func UserKey(userID int32) string {
	return fmt.Sprintf("%d", userID)
}

// EntityKey is the snapshot key for a track or playlist record.
func EntityKey(entityID int32) string {
	return fmt.Sprintf("%d", entityID)
}

// SocialKey is the snapshot key for the join entities keyed by
// (user, target type, target id): follows, saves, reposts,
// subscriptions, mutes and seen markers.
func SocialKey(userID int32, entityType EntityType, entityID int32) string {
	return fmt.Sprintf("%d:%s:%d", userID, entityType, entityID)
}

// GrantKey is the snapshot key for a delegation grant.
func GrantKey(granteeAddress string, userID int32) string {
	return fmt.Sprintf("%s:%d", NormalizeWallet(granteeAddress), userID)
}

// AppKey is the snapshot key for a developer app, which is addressed by
// its wallet.
func AppKey(address string) string {
	return NormalizeWallet(address)
}

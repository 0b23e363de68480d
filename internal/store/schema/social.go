package schema

import (
	"github.com/openaudio/discovery-indexer/internal/domain"
)

// TargetType is the kind of entity a social action points at.
type TargetType string

const (
	// TargetTrack points a repost or save at a track
	TargetTrack TargetType = "track"
	// TargetPlaylist points a repost or save at a playlist
	TargetPlaylist TargetType = "playlist"
	// TargetAlbum points a repost or save at an album playlist
	TargetAlbum TargetType = "album"
)

// EntityType maps the target back to the entity type used in snapshot keys.
func (t TargetType) EntityType() domain.EntityType {
	if t == TargetTrack {
		return domain.EntityTypeTrack
	}
	return domain.EntityTypePlaylist
}

// Follow represents the follows table: one user following another.
type Follow struct {
	// FollowerUserID is the user performing the follow
	FollowerUserID int32 `gorm:"column:follower_user_id;primaryKey"`
	// FolloweeUserID is the user being followed
	FolloweeUserID int32 `gorm:"column:followee_user_id;primaryKey"`

	BlockFields
}

// TableName specifies the table name for the Follow model
func (Follow) TableName() string {
	return "follows"
}

func (f *Follow) Key() string {
	return domain.SocialKey(f.FollowerUserID, domain.EntityTypeUser, f.FolloweeUserID)
}
func (f *Follow) Type() domain.EntityType { return domain.EntityTypeFollow }

// CopyForward clones the follow onto a new chain position.
func (f *Follow) CopyForward(meta BlockMeta) Versioned {
	cp := *f
	cp.stamp(meta)
	return &cp
}

// Repost represents the reposts table.
type Repost struct {
	// UserID is the user performing the repost
	UserID int32 `gorm:"column:user_id;primaryKey"`
	// RepostItemID is the track or playlist being reposted
	RepostItemID int32 `gorm:"column:repost_item_id;primaryKey"`
	// RepostType records what kind of entity the repost points at
	RepostType TargetType `gorm:"column:repost_type;primaryKey;type:text"`

	BlockFields
}

// TableName specifies the table name for the Repost model
func (Repost) TableName() string {
	return "reposts"
}

func (r *Repost) Key() string {
	return domain.SocialKey(r.UserID, r.RepostType.EntityType(), r.RepostItemID)
}
func (r *Repost) Type() domain.EntityType { return domain.EntityTypeRepost }

// CopyForward clones the repost onto a new chain position.
func (r *Repost) CopyForward(meta BlockMeta) Versioned {
	cp := *r
	cp.stamp(meta)
	return &cp
}

// Save represents the saves (favorites) table.
type Save struct {
	// UserID is the user performing the save
	UserID int32 `gorm:"column:user_id;primaryKey"`
	// SaveItemID is the track or playlist being saved
	SaveItemID int32 `gorm:"column:save_item_id;primaryKey"`
	// SaveType records what kind of entity the save points at
	SaveType TargetType `gorm:"column:save_type;primaryKey;type:text"`

	BlockFields
}

// TableName specifies the table name for the Save model
func (Save) TableName() string {
	return "saves"
}

func (s *Save) Key() string {
	return domain.SocialKey(s.UserID, s.SaveType.EntityType(), s.SaveItemID)
}
func (s *Save) Type() domain.EntityType { return domain.EntityTypeSave }

// CopyForward clones the save onto a new chain position.
func (s *Save) CopyForward(meta BlockMeta) Versioned {
	cp := *s
	cp.stamp(meta)
	return &cp
}

// Subscription represents the subscriptions table: one user subscribing
// to release notifications from another.
type Subscription struct {
	// SubscriberID is the user subscribing
	SubscriberID int32 `gorm:"column:subscriber_id;primaryKey"`
	// UserID is the user being subscribed to
	UserID int32 `gorm:"column:user_id;primaryKey"`

	BlockFields
}

// TableName specifies the table name for the Subscription model
func (Subscription) TableName() string {
	return "subscriptions"
}

func (s *Subscription) Key() string {
	return domain.SocialKey(s.SubscriberID, domain.EntityTypeUser, s.UserID)
}
func (s *Subscription) Type() domain.EntityType { return domain.EntityTypeSubscription }

// CopyForward clones the subscription onto a new chain position.
func (s *Subscription) CopyForward(meta BlockMeta) Versioned {
	cp := *s
	cp.stamp(meta)
	return &cp
}

// MutedUser represents the muted_users table.
type MutedUser struct {
	// UserID is the user doing the muting
	UserID int32 `gorm:"column:user_id;primaryKey"`
	// MutedUserID is the user being muted
	MutedUserID int32 `gorm:"column:muted_user_id;primaryKey"`

	BlockFields
}

// TableName specifies the table name for the MutedUser model
func (MutedUser) TableName() string {
	return "muted_users"
}

func (m *MutedUser) Key() string {
	return domain.SocialKey(m.UserID, domain.EntityTypeUser, m.MutedUserID)
}
func (m *MutedUser) Type() domain.EntityType { return domain.EntityTypeMutedUser }

// CopyForward clones the mute onto a new chain position.
func (m *MutedUser) CopyForward(meta BlockMeta) Versioned {
	cp := *m
	cp.stamp(meta)
	return &cp
}

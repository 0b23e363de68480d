package schema

import (
	"fmt"
	"time"

	"github.com/openaudio/discovery-indexer/internal/domain"
)

// NotificationSeen represents the notification_seens table: a marker
// that a user viewed their notifications at a given block time. At most
// one marker per (user, block time); a second View in the same block is
// a no-op.
type NotificationSeen struct {
	// UserID is the user that viewed their notifications
	UserID int32 `gorm:"column:user_id;primaryKey"`
	// SeenAt is the block timestamp of the view
	SeenAt time.Time `gorm:"column:seen_at;primaryKey"`

	BlockFields
}

// TableName specifies the table name for the NotificationSeen model
func (NotificationSeen) TableName() string {
	return "notification_seens"
}

func (n *NotificationSeen) Key() string {
	return fmt.Sprintf("%d:%d", n.UserID, n.SeenAt.Unix())
}
func (n *NotificationSeen) Type() domain.EntityType { return domain.EntityTypeNotificationSeen }

// CopyForward clones the marker onto a new chain position.
func (n *NotificationSeen) CopyForward(meta BlockMeta) Versioned {
	cp := *n
	cp.stamp(meta)
	return &cp
}

// PlaylistSeen represents the playlist_seens table: a marker that a
// user viewed updates to a playlist.
type PlaylistSeen struct {
	// UserID is the user that viewed the playlist
	UserID int32 `gorm:"column:user_id;primaryKey"`
	// PlaylistID is the playlist that was viewed
	PlaylistID int32 `gorm:"column:playlist_id;primaryKey"`
	// SeenAt is the block timestamp of the view
	SeenAt time.Time `gorm:"column:seen_at;not null"`

	BlockFields
}

// TableName specifies the table name for the PlaylistSeen model
func (PlaylistSeen) TableName() string {
	return "playlist_seens"
}

func (p *PlaylistSeen) Key() string {
	return domain.SocialKey(p.UserID, domain.EntityTypePlaylist, p.PlaylistID)
}
func (p *PlaylistSeen) Type() domain.EntityType { return domain.EntityTypePlaylistSeen }

// CopyForward clones the marker onto a new chain position.
func (p *PlaylistSeen) CopyForward(meta BlockMeta) Versioned {
	cp := *p
	cp.stamp(meta)
	return &cp
}

package schema

import (
	"gorm.io/datatypes"

	"github.com/openaudio/discovery-indexer/internal/domain"
)

// Playlist represents the playlists table. Albums are playlists with
// IsAlbum set.
type Playlist struct {
	// PlaylistID is the protocol-wide playlist identifier
	PlaylistID int32 `gorm:"column:playlist_id;primaryKey"`
	// OwnerID is the user that owns the playlist
	OwnerID int32 `gorm:"column:owner_id;not null;index"`
	// Name is the playlist name
	Name string `gorm:"column:name;type:text"`
	// Description is the free-form playlist description
	Description string `gorm:"column:description;type:text"`
	// IsAlbum distinguishes albums from plain playlists
	IsAlbum bool `gorm:"column:is_album;not null;default:false"`
	// IsPrivate hides the playlist from public feeds
	IsPrivate bool `gorm:"column:is_private;not null;default:false"`
	// TrackIDs is the ordered list of track ids, stored as a JSON array
	TrackIDs datatypes.JSON `gorm:"column:track_ids;type:jsonb"`

	BlockFields
}

// TableName specifies the table name for the Playlist model
func (Playlist) TableName() string {
	return "playlists"
}

func (p *Playlist) Key() string             { return domain.EntityKey(p.PlaylistID) }
func (p *Playlist) Type() domain.EntityType { return domain.EntityTypePlaylist }

// CopyForward clones the playlist onto a new chain position.
func (p *Playlist) CopyForward(meta BlockMeta) Versioned {
	cp := *p
	cp.stamp(meta)
	return &cp
}

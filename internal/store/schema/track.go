package schema

import (
	"gorm.io/datatypes"

	"github.com/openaudio/discovery-indexer/internal/domain"
)

// Track represents the tracks table.
type Track struct {
	// TrackID is the protocol-wide track identifier
	TrackID int32 `gorm:"column:track_id;primaryKey"`
	// OwnerID is the user that owns the track
	OwnerID int32 `gorm:"column:owner_id;not null;index"`
	// Title is the track title
	Title string `gorm:"column:title;type:text"`
	// Description is the free-form track description
	Description string `gorm:"column:description;type:text"`
	// IsUnlisted hides the track from public feeds without deleting it
	IsUnlisted bool `gorm:"column:is_unlisted;not null;default:false"`
	// Metadata holds the full track metadata payload as published on chain
	Metadata datatypes.JSON `gorm:"column:metadata;type:jsonb"`

	BlockFields
}

// TableName specifies the table name for the Track model
func (Track) TableName() string {
	return "tracks"
}

func (t *Track) Key() string             { return domain.EntityKey(t.TrackID) }
func (t *Track) Type() domain.EntityType { return domain.EntityTypeTrack }

// CopyForward clones the track onto a new chain position.
func (t *Track) CopyForward(meta BlockMeta) Versioned {
	cp := *t
	cp.stamp(meta)
	return &cp
}

package schema

import (
	"gorm.io/datatypes"

	"github.com/openaudio/discovery-indexer/internal/domain"
)

// User represents the users table.
type User struct {
	// UserID is the protocol-wide user identifier
	UserID int32 `gorm:"column:user_id;primaryKey"`
	// Handle is the unique user handle
	Handle string `gorm:"column:handle;type:text"`
	// Name is the display name
	Name string `gorm:"column:name;type:text"`
	// Bio is the free-form profile text
	Bio string `gorm:"column:bio;type:text"`
	// Wallet is the user's own signing wallet, lowercased
	Wallet string `gorm:"column:wallet;type:text;index"`
	// IsVerified is set by the Verify action, never by metadata updates
	IsVerified bool `gorm:"column:is_verified;not null;default:false"`
	// Metadata holds the full profile metadata payload as published on chain
	Metadata datatypes.JSON `gorm:"column:metadata;type:jsonb"`

	BlockFields
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}

func (u *User) Key() string             { return domain.UserKey(u.UserID) }
func (u *User) Type() domain.EntityType { return domain.EntityTypeUser }

// CopyForward clones the user onto a new chain position.
func (u *User) CopyForward(meta BlockMeta) Versioned {
	cp := *u
	cp.stamp(meta)
	return &cp
}

package schema

import (
	"github.com/openaudio/discovery-indexer/internal/domain"
)

// Grant represents the grants table: a delegation record allowing a
// wallet (usually a developer app) to sign manage-entity transactions
// on behalf of a user. A grant authorizes nothing until the user
// approves it, and stops authorizing once revoked.
type Grant struct {
	// UserID is the user granting access
	UserID int32 `gorm:"column:user_id;primaryKey"`
	// GranteeAddress is the wallet being granted access, lowercased
	GranteeAddress string `gorm:"column:grantee_address;primaryKey;type:text"`
	// IsApproved is set when the user approves the grant
	IsApproved bool `gorm:"column:is_approved;not null;default:false"`
	// IsRevoked is set when either side revokes the grant
	IsRevoked bool `gorm:"column:is_revoked;not null;default:false"`

	BlockFields
}

// TableName specifies the table name for the Grant model
func (Grant) TableName() string {
	return "grants"
}

func (g *Grant) Key() string {
	return domain.GrantKey(g.GranteeAddress, g.UserID)
}
func (g *Grant) Type() domain.EntityType { return domain.EntityTypeGrant }

// CopyForward clones the grant onto a new chain position.
func (g *Grant) CopyForward(meta BlockMeta) Versioned {
	cp := *g
	cp.stamp(meta)
	return &cp
}

// DeveloperApp represents the developer_apps table: a registered
// third-party app addressed by its signing wallet.
type DeveloperApp struct {
	// Address is the app's signing wallet, lowercased
	Address string `gorm:"column:address;primaryKey;type:text"`
	// UserID is the user that registered the app
	UserID int32 `gorm:"column:user_id;not null;index"`
	// Name is the app display name
	Name string `gorm:"column:name;type:text"`
	// Description is the free-form app description
	Description string `gorm:"column:description;type:text"`

	BlockFields
}

// TableName specifies the table name for the DeveloperApp model
func (DeveloperApp) TableName() string {
	return "developer_apps"
}

func (d *DeveloperApp) Key() string             { return domain.AppKey(d.Address) }
func (d *DeveloperApp) Type() domain.EntityType { return domain.EntityTypeDeveloperApp }

// CopyForward clones the app onto a new chain position.
func (d *DeveloperApp) CopyForward(meta BlockMeta) Versioned {
	cp := *d
	cp.stamp(meta)
	return &cp
}

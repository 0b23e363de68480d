package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/openaudio/discovery-indexer/internal/store"
	"github.com/openaudio/discovery-indexer/internal/store/schema"
)

const (
	userID     = int32(3_000_001)
	userWallet = "0x52908400098527886e0f7030069857d2e4169ee7"
	appWallet  = "0x8617e340b3d01fa5f11f306f4090fd50e238070d"
)

func meta() schema.BlockMeta {
	return schema.BlockMeta{Blocknumber: 1, Blockhash: "0xb", Txhash: "0xt", Timestamp: time.Unix(1700000000, 0)}
}

func snapWith(records ...schema.Versioned) *store.Snapshot {
	snap := store.NewSnapshot()
	for _, rec := range records {
		snap.Put(rec)
	}
	return snap
}

func user() *schema.User {
	return &schema.User{UserID: userID, Wallet: userWallet, BlockFields: schema.NewBlockFields(meta())}
}

func grant(approved, revoked bool) *schema.Grant {
	return &schema.Grant{
		UserID:         userID,
		GranteeAddress: appWallet,
		IsApproved:     approved,
		IsRevoked:      revoked,
		BlockFields:    schema.NewBlockFields(meta()),
	}
}

func TestIsAuthorized(t *testing.T) {
	deletedUser := user()
	deletedUser.SetDeleted(true)

	deletedApp := &schema.DeveloperApp{Address: appWallet, UserID: userID, BlockFields: schema.NewBlockFields(meta())}
	deletedApp.SetDeleted(true)

	deletedGrant := grant(true, false)
	deletedGrant.SetDeleted(true)

	tests := []struct {
		name   string
		signer string
		snap   *store.Snapshot
		want   bool
	}{
		{
			name:   "own wallet",
			signer: userWallet,
			snap:   snapWith(user()),
			want:   true,
		},
		{
			name:   "own wallet different casing",
			signer: "0x52908400098527886E0F7030069857D2E4169EE7",
			snap:   snapWith(user()),
			want:   true,
		},
		{
			name:   "unknown wallet",
			signer: appWallet,
			snap:   snapWith(user()),
			want:   false,
		},
		{
			name:   "empty signer",
			signer: "",
			snap:   snapWith(user()),
			want:   false,
		},
		{
			name:   "user does not exist",
			signer: userWallet,
			snap:   snapWith(),
			want:   false,
		},
		{
			name:   "user deleted",
			signer: userWallet,
			snap:   snapWith(deletedUser),
			want:   false,
		},
		{
			name:   "approved grant",
			signer: appWallet,
			snap:   snapWith(user(), grant(true, false)),
			want:   true,
		},
		{
			name:   "pending grant",
			signer: appWallet,
			snap:   snapWith(user(), grant(false, false)),
			want:   false,
		},
		{
			name:   "revoked grant",
			signer: appWallet,
			snap:   snapWith(user(), grant(true, true)),
			want:   false,
		},
		{
			name:   "tombstoned grant",
			signer: appWallet,
			snap:   snapWith(user(), deletedGrant),
			want:   false,
		},
		{
			name:   "grant to live developer app",
			signer: appWallet,
			snap: snapWith(user(), grant(true, false),
				&schema.DeveloperApp{Address: appWallet, UserID: userID, BlockFields: schema.NewBlockFields(meta())}),
			want: true,
		},
		{
			name:   "grant to deleted developer app",
			signer: appWallet,
			snap:   snapWith(user(), grant(true, false), deletedApp),
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAuthorized(tt.signer, userID, tt.snap))
		})
	}
}

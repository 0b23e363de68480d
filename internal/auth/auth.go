// Package auth decides whether the recovered signer of a manage-entity
// transaction is allowed to act for the user it names. The decision is
// pure: it reads only the snapshot, so two nodes replaying the same
// block always agree on it.
package auth

import (
	"github.com/openaudio/discovery-indexer/internal/domain"
	"github.com/openaudio/discovery-indexer/internal/store"
)

// IsAuthorized reports whether signer may act on behalf of userID.
//
// A signer qualifies either as the user's own wallet or through a
// delegation grant that the user approved and nobody revoked. When the
// grantee wallet belongs to a registered developer app, a tombstoned
// app kills the delegation even if the grant row itself is still live.
func IsAuthorized(signer string, userID int32, snap *store.Snapshot) bool {
	wallet := domain.NormalizeWallet(signer)
	if wallet == "" {
		return false
	}

	user, ok := snap.User(userID)
	if !ok || user.Deleted() {
		return false
	}
	if domain.NormalizeWallet(user.Wallet) == wallet {
		return true
	}

	grant, ok := snap.Grant(wallet, userID)
	if !ok || grant.Deleted() {
		return false
	}
	if !grant.IsApproved || grant.IsRevoked {
		return false
	}

	if app, ok := snap.DeveloperApp(wallet); ok && app.Deleted() {
		return false
	}

	return true
}

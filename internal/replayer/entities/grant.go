package entities

import (
	"github.com/openaudio/discovery-indexer/internal/domain"
	"github.com/openaudio/discovery-indexer/internal/store/schema"
)

type grantMetadata struct {
	GranteeAddress string `json:"grantee_address"`
}

// grantParties resolves the user and grantee wallet a grant transaction
// concerns.
func grantParties(env *Env, tx *domain.ManageEntityTx) (*schema.User, string, error) {
	user, err := requireUser(env, tx.UserID)
	if err != nil {
		return nil, "", err
	}
	var md grantMetadata
	if err := parseMetadata(tx, &md); err != nil {
		return nil, "", err
	}
	if md.GranteeAddress == "" {
		return nil, "", domain.Rejectf("grant requires a grantee address")
	}
	return user, domain.NormalizeWallet(md.GranteeAddress), nil
}

// signedByUser reports whether the transaction carries the user's own
// wallet signature, as opposed to a delegated one.
func signedByUser(user *schema.User, tx *domain.ManageEntityTx) bool {
	return domain.NormalizeWallet(tx.Signer) == domain.NormalizeWallet(user.Wallet)
}

// createGrant registers a delegation. A grant the user signs themselves
// is approved on the spot; a grant requested by the grantee side stays
// pending until the user approves it.
func createGrant(env *Env, tx *domain.ManageEntityTx) error {
	user, grantee, err := grantParties(env, tx)
	if err != nil {
		return err
	}
	if grantee == domain.NormalizeWallet(user.Wallet) {
		return domain.Rejectf("user %d cannot grant access to their own wallet", tx.UserID)
	}

	byUser := signedByUser(user, tx)
	if !byUser && domain.NormalizeWallet(tx.Signer) != grantee {
		return domain.Rejectf("grant must be signed by the user or the grantee")
	}

	if existing, ok := env.Snap().Grant(grantee, tx.UserID); ok && !existing.Deleted() {
		return domain.Rejectf("grant from user %d to %s already exists", tx.UserID, grantee)
	}

	env.Stager.Stage(&schema.Grant{
		UserID:         tx.UserID,
		GranteeAddress: grantee,
		IsApproved:     byUser,
		BlockFields:    schema.NewBlockFields(env.Meta),
	})
	return nil
}

// approveGrant lets the user accept a pending delegation request. Only
// the user's own wallet can approve.
func approveGrant(env *Env, tx *domain.ManageEntityTx) error {
	user, grantee, err := grantParties(env, tx)
	if err != nil {
		return err
	}
	if !signedByUser(user, tx) {
		return domain.Rejectf("grant approval must be signed by the user's own wallet")
	}

	grant, ok := env.Snap().Grant(grantee, tx.UserID)
	if !ok || grant.Deleted() {
		return domain.Rejectf("grant from user %d to %s does not exist", tx.UserID, grantee)
	}
	if grant.IsRevoked {
		return domain.Rejectf("grant from user %d to %s was revoked", tx.UserID, grantee)
	}
	if grant.IsApproved {
		return nil
	}

	next := grant.CopyForward(env.Meta).(*schema.Grant)
	next.IsApproved = true
	env.Stager.Stage(next)
	return nil
}

// rejectGrant lets the user decline a pending request or revoke an
// approved one without removing the row.
func rejectGrant(env *Env, tx *domain.ManageEntityTx) error {
	user, grantee, err := grantParties(env, tx)
	if err != nil {
		return err
	}
	if !signedByUser(user, tx) {
		return domain.Rejectf("grant rejection must be signed by the user's own wallet")
	}

	grant, ok := env.Snap().Grant(grantee, tx.UserID)
	if !ok || grant.Deleted() {
		return domain.Rejectf("grant from user %d to %s does not exist", tx.UserID, grantee)
	}
	if grant.IsRevoked {
		return nil
	}

	next := grant.CopyForward(env.Meta).(*schema.Grant)
	next.IsRevoked = true
	env.Stager.Stage(next)
	return nil
}

// deleteGrant tombstones a delegation. Either side can walk away.
func deleteGrant(env *Env, tx *domain.ManageEntityTx) error {
	user, grantee, err := grantParties(env, tx)
	if err != nil {
		return err
	}
	signer := domain.NormalizeWallet(tx.Signer)
	if !signedByUser(user, tx) && signer != grantee {
		return domain.Rejectf("grant deletion must be signed by the user or the grantee")
	}

	grant, ok := env.Snap().Grant(grantee, tx.UserID)
	if !ok || grant.Deleted() {
		return domain.Rejectf("grant from user %d to %s does not exist", tx.UserID, grantee)
	}

	next := grant.CopyForward(env.Meta).(*schema.Grant)
	next.IsRevoked = true
	next.SetDeleted(true)
	env.Stager.Stage(next)
	return nil
}

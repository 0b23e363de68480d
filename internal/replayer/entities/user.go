package entities

import (
	"strings"

	"gorm.io/datatypes"

	"github.com/openaudio/discovery-indexer/internal/domain"
	"github.com/openaudio/discovery-indexer/internal/store/schema"
)

type userMetadata struct {
	Handle string `json:"handle"`
	Name   string `json:"name"`
	Bio    string `json:"bio"`
	Wallet string `json:"wallet"`
}

func validateUserMetadata(md *userMetadata) error {
	if len(md.Handle) > domain.HandleCharLimit {
		return domain.Rejectf("handle exceeds %d characters", domain.HandleCharLimit)
	}
	if len(md.Bio) > domain.UserBioCharLimit {
		return domain.Rejectf("bio exceeds %d characters", domain.UserBioCharLimit)
	}
	return nil
}

func createUser(env *Env, tx *domain.ManageEntityTx) error {
	if tx.UserID < domain.UserIDOffset {
		return domain.Rejectf("user id %d is below the entity manager id offset", tx.UserID)
	}
	if existing, ok := env.Snap().User(tx.UserID); ok && !existing.Deleted() {
		return domain.Rejectf("user %d already exists", tx.UserID)
	}

	var md userMetadata
	if err := parseMetadata(tx, &md); err != nil {
		return err
	}
	if err := validateUserMetadata(&md); err != nil {
		return err
	}
	if md.Wallet == "" {
		return domain.Rejectf("user creation requires a wallet")
	}
	// New users have no grants, so the transaction must be self-signed.
	if domain.NormalizeWallet(tx.Signer) != domain.NormalizeWallet(md.Wallet) {
		return domain.Rejectf("user creation must be signed by the user's own wallet")
	}

	env.Stager.Stage(&schema.User{
		UserID:      tx.UserID,
		Handle:      strings.ToLower(md.Handle),
		Name:        md.Name,
		Bio:         md.Bio,
		Wallet:      domain.NormalizeWallet(md.Wallet),
		Metadata:    datatypes.JSON(tx.Metadata),
		BlockFields: schema.NewBlockFields(env.Meta),
	})
	return nil
}

func updateUser(env *Env, tx *domain.ManageEntityTx) error {
	user, err := requireUser(env, tx.UserID)
	if err != nil {
		return err
	}
	if err := requireSigner(env, tx, tx.UserID); err != nil {
		return err
	}

	var md userMetadata
	if err := parseMetadata(tx, &md); err != nil {
		return err
	}
	if err := validateUserMetadata(&md); err != nil {
		return err
	}

	next := user.CopyForward(env.Meta).(*schema.User)
	if md.Handle != "" {
		next.Handle = strings.ToLower(md.Handle)
	}
	if md.Name != "" {
		next.Name = md.Name
	}
	next.Bio = md.Bio
	// The wallet and verified flag never move through metadata updates.
	next.Metadata = datatypes.JSON(tx.Metadata)
	env.Stager.Stage(next)
	return nil
}

// verifyUser flips the verified flag. Only the verifier service wallet
// issues these, but that check lives on chain; here the transaction is
// accepted as long as the target user exists.
func verifyUser(env *Env, tx *domain.ManageEntityTx) error {
	user, err := requireUser(env, tx.UserID)
	if err != nil {
		return err
	}
	if user.IsVerified {
		return nil
	}
	next := user.CopyForward(env.Meta).(*schema.User)
	next.IsVerified = true
	env.Stager.Stage(next)
	return nil
}

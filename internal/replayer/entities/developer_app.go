package entities

import (
	"github.com/openaudio/discovery-indexer/internal/domain"
	"github.com/openaudio/discovery-indexer/internal/store/schema"
)

type developerAppMetadata struct {
	Address     string `json:"address"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func createDeveloperApp(env *Env, tx *domain.ManageEntityTx) error {
	user, err := requireUser(env, tx.UserID)
	if err != nil {
		return err
	}
	if err := requireSigner(env, tx, tx.UserID); err != nil {
		return err
	}

	var md developerAppMetadata
	if err := parseMetadata(tx, &md); err != nil {
		return err
	}
	if md.Address == "" {
		return domain.Rejectf("developer app requires a signing address")
	}
	if len(md.Description) > domain.DescriptionCharLimit {
		return domain.Rejectf("description exceeds %d characters", domain.DescriptionCharLimit)
	}
	address := domain.NormalizeWallet(md.Address)
	if address == domain.NormalizeWallet(user.Wallet) {
		return domain.Rejectf("developer app cannot reuse the user's own wallet")
	}
	if existing, ok := env.Snap().DeveloperApp(address); ok && !existing.Deleted() {
		return domain.Rejectf("developer app %s already exists", address)
	}

	env.Stager.Stage(&schema.DeveloperApp{
		Address:     address,
		UserID:      tx.UserID,
		Name:        md.Name,
		Description: md.Description,
		BlockFields: schema.NewBlockFields(env.Meta),
	})
	return nil
}

func deleteDeveloperApp(env *Env, tx *domain.ManageEntityTx) error {
	if _, err := requireUser(env, tx.UserID); err != nil {
		return err
	}
	if err := requireSigner(env, tx, tx.UserID); err != nil {
		return err
	}

	var md developerAppMetadata
	if err := parseMetadata(tx, &md); err != nil {
		return err
	}
	address := domain.NormalizeWallet(md.Address)

	app, ok := env.Snap().DeveloperApp(address)
	if !ok || app.Deleted() {
		return domain.Rejectf("developer app %s does not exist", address)
	}
	if app.UserID != tx.UserID {
		return domain.Rejectf("user %d does not own developer app %s", tx.UserID, address)
	}

	next := app.CopyForward(env.Meta).(*schema.DeveloperApp)
	next.SetDeleted(true)
	env.Stager.Stage(next)
	return nil
}

package entities

import (
	"gorm.io/datatypes"

	"github.com/openaudio/discovery-indexer/internal/challenge"
	"github.com/openaudio/discovery-indexer/internal/domain"
	"github.com/openaudio/discovery-indexer/internal/store/schema"
)

type trackMetadata struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	IsUnlisted  bool   `json:"is_unlisted"`
}

func validateTrackMetadata(md *trackMetadata) error {
	if len(md.Description) > domain.DescriptionCharLimit {
		return domain.Rejectf("description exceeds %d characters", domain.DescriptionCharLimit)
	}
	return nil
}

func trackByID(env *Env, trackID int32) (*schema.Track, bool) {
	rec, ok := env.Snap().Get(domain.EntityTypeTrack, domain.EntityKey(trackID))
	if !ok {
		return nil, false
	}
	track, ok := rec.(*schema.Track)
	return track, ok
}

func createTrack(env *Env, tx *domain.ManageEntityTx) error {
	if tx.EntityID < domain.TrackIDOffset {
		return domain.Rejectf("track id %d is below the entity manager id offset", tx.EntityID)
	}
	if _, err := requireUser(env, tx.UserID); err != nil {
		return err
	}
	if err := requireSigner(env, tx, tx.UserID); err != nil {
		return err
	}
	if existing, ok := trackByID(env, tx.EntityID); ok && !existing.Deleted() {
		return domain.Rejectf("track %d already exists", tx.EntityID)
	}

	var md trackMetadata
	if err := parseMetadata(tx, &md); err != nil {
		return err
	}
	if err := validateTrackMetadata(&md); err != nil {
		return err
	}

	env.Stager.Stage(&schema.Track{
		TrackID:     tx.EntityID,
		OwnerID:     tx.UserID,
		Title:       md.Title,
		Description: md.Description,
		IsUnlisted:  md.IsUnlisted,
		Metadata:    datatypes.JSON(tx.Metadata),
		BlockFields: schema.NewBlockFields(env.Meta),
	})

	if !md.IsUnlisted {
		env.Events.Dispatch(challenge.EventTrackUpload, tx.TxHash, tx.UserID, map[string]any{
			"track_id": tx.EntityID,
		})
	}
	return nil
}

func updateTrack(env *Env, tx *domain.ManageEntityTx) error {
	track, ok := trackByID(env, tx.EntityID)
	if !ok || track.Deleted() {
		return domain.Rejectf("track %d does not exist", tx.EntityID)
	}
	if track.OwnerID != tx.UserID {
		return domain.Rejectf("user %d does not own track %d", tx.UserID, tx.EntityID)
	}
	if err := requireSigner(env, tx, tx.UserID); err != nil {
		return err
	}

	var md trackMetadata
	if err := parseMetadata(tx, &md); err != nil {
		return err
	}
	if err := validateTrackMetadata(&md); err != nil {
		return err
	}

	next := track.CopyForward(env.Meta).(*schema.Track)
	if md.Title != "" {
		next.Title = md.Title
	}
	next.Description = md.Description
	next.IsUnlisted = md.IsUnlisted
	next.Metadata = datatypes.JSON(tx.Metadata)
	env.Stager.Stage(next)
	return nil
}

func deleteTrack(env *Env, tx *domain.ManageEntityTx) error {
	track, ok := trackByID(env, tx.EntityID)
	if !ok || track.Deleted() {
		return domain.Rejectf("track %d does not exist", tx.EntityID)
	}
	if track.OwnerID != tx.UserID {
		return domain.Rejectf("user %d does not own track %d", tx.UserID, tx.EntityID)
	}
	if err := requireSigner(env, tx, tx.UserID); err != nil {
		return err
	}

	next := track.CopyForward(env.Meta).(*schema.Track)
	next.SetDeleted(true)
	env.Stager.Stage(next)
	return nil
}

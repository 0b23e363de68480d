package entities

import (
	"encoding/json"

	"gorm.io/datatypes"

	"github.com/openaudio/discovery-indexer/internal/challenge"
	"github.com/openaudio/discovery-indexer/internal/domain"
	"github.com/openaudio/discovery-indexer/internal/store/schema"
)

type playlistMetadata struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	IsAlbum     bool    `json:"is_album"`
	IsPrivate   bool    `json:"is_private"`
	TrackIDs    []int32 `json:"track_ids"`
}

func validatePlaylistMetadata(md *playlistMetadata) error {
	if len(md.Description) > domain.DescriptionCharLimit {
		return domain.Rejectf("description exceeds %d characters", domain.DescriptionCharLimit)
	}
	if len(md.TrackIDs) > domain.PlaylistTrackLimit {
		return domain.Rejectf("playlist exceeds %d tracks", domain.PlaylistTrackLimit)
	}
	return nil
}

func playlistByID(env *Env, playlistID int32) (*schema.Playlist, bool) {
	rec, ok := env.Snap().Get(domain.EntityTypePlaylist, domain.EntityKey(playlistID))
	if !ok {
		return nil, false
	}
	playlist, ok := rec.(*schema.Playlist)
	return playlist, ok
}

func createPlaylist(env *Env, tx *domain.ManageEntityTx) error {
	if tx.EntityID < domain.PlaylistIDOffset {
		return domain.Rejectf("playlist id %d is below the entity manager id offset", tx.EntityID)
	}
	if _, err := requireUser(env, tx.UserID); err != nil {
		return err
	}
	if err := requireSigner(env, tx, tx.UserID); err != nil {
		return err
	}
	if existing, ok := playlistByID(env, tx.EntityID); ok && !existing.Deleted() {
		return domain.Rejectf("playlist %d already exists", tx.EntityID)
	}

	var md playlistMetadata
	if err := parseMetadata(tx, &md); err != nil {
		return err
	}
	if err := validatePlaylistMetadata(&md); err != nil {
		return err
	}

	trackIDs, _ := json.Marshal(md.TrackIDs)
	env.Stager.Stage(&schema.Playlist{
		PlaylistID:  tx.EntityID,
		OwnerID:     tx.UserID,
		Name:        md.Name,
		Description: md.Description,
		IsAlbum:     md.IsAlbum,
		IsPrivate:   md.IsPrivate,
		TrackIDs:    datatypes.JSON(trackIDs),
		BlockFields: schema.NewBlockFields(env.Meta),
	})

	if !md.IsPrivate {
		env.Events.Dispatch(challenge.EventFirstPlaylist, tx.TxHash, tx.UserID, map[string]any{
			"playlist_id": tx.EntityID,
		})
	}
	return nil
}

func updatePlaylist(env *Env, tx *domain.ManageEntityTx) error {
	playlist, ok := playlistByID(env, tx.EntityID)
	if !ok || playlist.Deleted() {
		return domain.Rejectf("playlist %d does not exist", tx.EntityID)
	}
	if playlist.OwnerID != tx.UserID {
		return domain.Rejectf("user %d does not own playlist %d", tx.UserID, tx.EntityID)
	}
	if err := requireSigner(env, tx, tx.UserID); err != nil {
		return err
	}

	var md playlistMetadata
	if err := parseMetadata(tx, &md); err != nil {
		return err
	}
	if err := validatePlaylistMetadata(&md); err != nil {
		return err
	}

	next := playlist.CopyForward(env.Meta).(*schema.Playlist)
	if md.Name != "" {
		next.Name = md.Name
	}
	next.Description = md.Description
	next.IsPrivate = md.IsPrivate
	// An album can never change back into a plain playlist.
	if md.IsAlbum {
		next.IsAlbum = true
	}
	trackIDs, _ := json.Marshal(md.TrackIDs)
	next.TrackIDs = datatypes.JSON(trackIDs)
	env.Stager.Stage(next)
	return nil
}

func deletePlaylist(env *Env, tx *domain.ManageEntityTx) error {
	playlist, ok := playlistByID(env, tx.EntityID)
	if !ok || playlist.Deleted() {
		return domain.Rejectf("playlist %d does not exist", tx.EntityID)
	}
	if playlist.OwnerID != tx.UserID {
		return domain.Rejectf("user %d does not own playlist %d", tx.UserID, tx.EntityID)
	}
	if err := requireSigner(env, tx, tx.UserID); err != nil {
		return err
	}

	next := playlist.CopyForward(env.Meta).(*schema.Playlist)
	next.SetDeleted(true)
	env.Stager.Stage(next)
	return nil
}

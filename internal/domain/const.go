package domain

// ID namespaces. Entity ids minted after the entity-manager migration
// start above these offsets so they can never collide with ids assigned
// by the legacy factory contracts.
const (
	PlaylistIDOffset int32 = 400_000
	TrackIDOffset    int32 = 2_000_000
	UserIDOffset     int32 = 3_000_000
)

// Field limits enforced by the validators.
const (
	UserBioCharLimit     = 250
	DescriptionCharLimit = 1000
	PlaylistTrackLimit   = 5000
	HandleCharLimit      = 30
)

package replayer

import (
	"encoding/json"

	"github.com/openaudio/discovery-indexer/internal/domain"
	"github.com/openaudio/discovery-indexer/internal/store"
)

// refCollector dedupes entity references across a batch before turning
// them into one FetchRefs for the bulk snapshot load.
type refCollector struct {
	users     map[int32]struct{}
	tracks    map[int32]struct{}
	playlists map[int32]struct{}
	follows   map[store.PairRef]struct{}
	reposts   map[store.ItemRef]struct{}
	saves     map[store.ItemRef]struct{}
	subs      map[store.PairRef]struct{}
	mutes     map[store.PairRef]struct{}
	seens     map[store.PairRef]struct{}
	grants    map[store.GrantRef]struct{}
	apps      map[string]struct{}
	tips      map[store.TipRef]struct{}
}

func newRefCollector() *refCollector {
	return &refCollector{
		users:     make(map[int32]struct{}),
		tracks:    make(map[int32]struct{}),
		playlists: make(map[int32]struct{}),
		follows:   make(map[store.PairRef]struct{}),
		reposts:   make(map[store.ItemRef]struct{}),
		saves:     make(map[store.ItemRef]struct{}),
		subs:      make(map[store.PairRef]struct{}),
		mutes:     make(map[store.PairRef]struct{}),
		seens:     make(map[store.PairRef]struct{}),
		grants:    make(map[store.GrantRef]struct{}),
		apps:      make(map[string]struct{}),
		tips:      make(map[store.TipRef]struct{}),
	}
}

// addrMetadata is the subset of metadata fields the collector needs to
// know which wallet-keyed rows a transaction can touch. Parse failures
// are ignored here; the handler rejects the transaction properly.
type addrMetadata struct {
	GranteeAddress string `json:"grantee_address"`
	Address        string `json:"address"`
	ReactedTo      string `json:"reacted_to"`
}

// add records every row one transaction can read or write.
func (c *refCollector) add(tx *domain.ManageEntityTx) {
	if !tx.Decoded() {
		return
	}

	c.users[tx.UserID] = struct{}{}

	// The authorization check reads the grant and developer app rows
	// keyed by the signer wallet for every transaction.
	signer := domain.NormalizeWallet(tx.Signer)
	if signer != "" {
		c.grants[store.GrantRef{GranteeAddress: signer, UserID: tx.UserID}] = struct{}{}
		c.apps[signer] = struct{}{}
	}

	switch tx.EntityType {
	case domain.EntityTypeUser:
		switch tx.Action {
		case domain.ActionFollow, domain.ActionUnfollow:
			c.users[tx.EntityID] = struct{}{}
			c.follows[store.PairRef{A: tx.UserID, B: tx.EntityID}] = struct{}{}
		case domain.ActionSubscribe, domain.ActionUnsubscribe:
			c.users[tx.EntityID] = struct{}{}
			c.subs[store.PairRef{A: tx.UserID, B: tx.EntityID}] = struct{}{}
		case domain.ActionMute, domain.ActionUnmute:
			c.users[tx.EntityID] = struct{}{}
			c.mutes[store.PairRef{A: tx.UserID, B: tx.EntityID}] = struct{}{}
		}

	case domain.EntityTypeTrack:
		c.tracks[tx.EntityID] = struct{}{}
		switch tx.Action {
		case domain.ActionRepost, domain.ActionUnrepost:
			c.reposts[store.ItemRef{UserID: tx.UserID, ItemID: tx.EntityID}] = struct{}{}
		case domain.ActionSave, domain.ActionUnsave:
			c.saves[store.ItemRef{UserID: tx.UserID, ItemID: tx.EntityID}] = struct{}{}
		}

	case domain.EntityTypePlaylist:
		c.playlists[tx.EntityID] = struct{}{}
		switch tx.Action {
		case domain.ActionRepost, domain.ActionUnrepost:
			c.reposts[store.ItemRef{UserID: tx.UserID, ItemID: tx.EntityID}] = struct{}{}
		case domain.ActionSave, domain.ActionUnsave:
			c.saves[store.ItemRef{UserID: tx.UserID, ItemID: tx.EntityID}] = struct{}{}
		}

	case domain.EntityTypeNotification:
		if tx.Action == domain.ActionViewPlaylist {
			c.playlists[tx.EntityID] = struct{}{}
			c.seens[store.PairRef{A: tx.UserID, B: tx.EntityID}] = struct{}{}
		}

	case domain.EntityTypeGrant:
		var md addrMetadata
		if err := json.Unmarshal([]byte(tx.Metadata), &md); err == nil && md.GranteeAddress != "" {
			grantee := domain.NormalizeWallet(md.GranteeAddress)
			c.grants[store.GrantRef{GranteeAddress: grantee, UserID: tx.UserID}] = struct{}{}
			c.apps[grantee] = struct{}{}
		}

	case domain.EntityTypeDeveloperApp:
		var md addrMetadata
		if err := json.Unmarshal([]byte(tx.Metadata), &md); err == nil && md.Address != "" {
			c.apps[domain.NormalizeWallet(md.Address)] = struct{}{}
		}

	case domain.EntityTypeTip:
		var md addrMetadata
		if err := json.Unmarshal([]byte(tx.Metadata), &md); err == nil && md.ReactedTo != "" {
			c.tips[store.TipRef{UserID: tx.UserID, ReactedTo: md.ReactedTo}] = struct{}{}
		}
	}
}

func (c *refCollector) refs() *store.FetchRefs {
	out := &store.FetchRefs{}
	for id := range c.users {
		out.Users = append(out.Users, id)
	}
	for id := range c.tracks {
		out.Tracks = append(out.Tracks, id)
	}
	for id := range c.playlists {
		out.Playlists = append(out.Playlists, id)
	}
	for ref := range c.follows {
		out.Follows = append(out.Follows, ref)
	}
	for ref := range c.reposts {
		out.Reposts = append(out.Reposts, ref)
	}
	for ref := range c.saves {
		out.Saves = append(out.Saves, ref)
	}
	for ref := range c.subs {
		out.Subscriptions = append(out.Subscriptions, ref)
	}
	for ref := range c.mutes {
		out.Mutes = append(out.Mutes, ref)
	}
	for ref := range c.seens {
		out.PlaylistSeens = append(out.PlaylistSeens, ref)
	}
	for ref := range c.grants {
		out.Grants = append(out.Grants, ref)
	}
	for addr := range c.apps {
		out.Apps = append(out.Apps, addr)
	}
	for ref := range c.tips {
		out.Tips = append(out.Tips, ref)
	}
	return out
}

// collectRefs builds the snapshot fetch list for one block batch.
func collectRefs(txs []domain.ManageEntityTx) *store.FetchRefs {
	c := newRefCollector()
	for i := range txs {
		c.add(&txs[i])
	}
	return c.refs()
}

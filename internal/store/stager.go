package store

import (
	"github.com/openaudio/discovery-indexer/internal/domain"
	"github.com/openaudio/discovery-indexer/internal/store/schema"
)

// Stager accumulates the row versions a block's transactions produce.
// Every staged row is also put into the snapshot, so a later
// transaction in the same batch validates against the staged state
// rather than the pre-block database state.
type Stager struct {
	snap   *Snapshot
	staged map[domain.EntityType]map[string][]schema.Versioned
}

// NewStager wraps a snapshot for one block's replay.
func NewStager(snap *Snapshot) *Stager {
	return &Stager{
		snap:   snap,
		staged: make(map[domain.EntityType]map[string][]schema.Versioned),
	}
}

// Snapshot returns the batch view the stager updates.
func (st *Stager) Snapshot() *Snapshot { return st.snap }

// Stage records rec as the new current version of its logical entity.
func (st *Stager) Stage(rec schema.Versioned) {
	byKey, ok := st.staged[rec.Type()]
	if !ok {
		byKey = make(map[string][]schema.Versioned)
		st.staged[rec.Type()] = byKey
	}
	byKey[rec.Key()] = append(byKey[rec.Key()], rec)
	st.snap.Put(rec)
}

// Staged returns everything staged so far, for the block commit.
func (st *Stager) Staged() map[domain.EntityType]map[string][]schema.Versioned {
	return st.staged
}

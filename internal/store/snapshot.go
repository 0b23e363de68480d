package store

import (
	"github.com/openaudio/discovery-indexer/internal/domain"
	"github.com/openaudio/discovery-indexer/internal/store/schema"
)

// Snapshot is the in-memory view of current rows a block's replay runs
// against. It starts as the database state for every referenced entity
// and is updated as transactions in the batch stage new versions, so a
// later transaction in the same block sees the effects of an earlier
// one. Discarded after commit; never cached across batches.
type Snapshot struct {
	records map[domain.EntityType]map[string]schema.Versioned
}

// NewSnapshot creates an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{records: make(map[domain.EntityType]map[string]schema.Versioned)}
}

// Get returns the current row for (entityType, key), if any.
func (s *Snapshot) Get(entityType domain.EntityType, key string) (schema.Versioned, bool) {
	byKey, ok := s.records[entityType]
	if !ok {
		return nil, false
	}
	rec, ok := byKey[key]
	return rec, ok
}

// Put stages a row as the new current version for its logical entity.
func (s *Snapshot) Put(rec schema.Versioned) {
	byKey, ok := s.records[rec.Type()]
	if !ok {
		byKey = make(map[string]schema.Versioned)
		s.records[rec.Type()] = byKey
	}
	byKey[rec.Key()] = rec
}

// User returns the current user row by id.
func (s *Snapshot) User(userID int32) (*schema.User, bool) {
	rec, ok := s.Get(domain.EntityTypeUser, domain.UserKey(userID))
	if !ok {
		return nil, false
	}
	user, ok := rec.(*schema.User)
	return user, ok
}

// Grant returns the current grant row by (grantee, user).
func (s *Snapshot) Grant(granteeAddress string, userID int32) (*schema.Grant, bool) {
	rec, ok := s.Get(domain.EntityTypeGrant, domain.GrantKey(granteeAddress, userID))
	if !ok {
		return nil, false
	}
	grant, ok := rec.(*schema.Grant)
	return grant, ok
}

// DeveloperApp returns the current developer app row by wallet.
func (s *Snapshot) DeveloperApp(address string) (*schema.DeveloperApp, bool) {
	rec, ok := s.Get(domain.EntityTypeDeveloperApp, domain.AppKey(address))
	if !ok {
		return nil, false
	}
	app, ok := rec.(*schema.DeveloperApp)
	return app, ok
}

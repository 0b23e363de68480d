package worker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/openaudio/discovery-indexer/internal/chains"
	"github.com/openaudio/discovery-indexer/internal/domain"
	"github.com/openaudio/discovery-indexer/internal/replayer"
	"github.com/openaudio/discovery-indexer/internal/store"
	"github.com/openaudio/discovery-indexer/internal/store/schema"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&schema.User{}, &schema.Track{}, &schema.Playlist{},
		&schema.Follow{}, &schema.Repost{}, &schema.Save{},
		&schema.Subscription{}, &schema.MutedUser{},
		&schema.NotificationSeen{}, &schema.PlaylistSeen{},
		&schema.Grant{}, &schema.DeveloperApp{}, &schema.TipReaction{},
		&schema.SkippedTransaction{}, &schema.IndexingCheckpoint{}, &schema.ChallengeEvent{},
	))
	return store.NewPGStore(db)
}

type stubAdapter struct {
	tip     uint64
	batches map[uint64]*domain.BlockBatch
	failAt  map[uint64]error
	fetched []uint64
}

func (s *stubAdapter) Name() string { return "stub" }

func (s *stubAdapter) GetBatchForBlock(ctx context.Context, height uint64) (*domain.BlockBatch, error) {
	if err := s.failAt[height]; err != nil {
		return nil, err
	}
	s.fetched = append(s.fetched, height)
	if batch, ok := s.batches[height]; ok {
		return batch, nil
	}
	return &domain.BlockBatch{
		Height:    height,
		Slot:      height,
		Hash:      fmt.Sprintf("0xblock%d", height),
		Timestamp: time.Unix(1700000000+int64(height), 0).UTC(),
	}, nil
}

func (s *stubAdapter) GetLatestAvailableHeight(ctx context.Context) (uint64, error) {
	return s.tip, nil
}

func newTestWorker(t *testing.T, st store.Store, adapter *stubAdapter, startHeight uint64) *Worker {
	t.Helper()

	router, err := chains.NewRouter(chains.Route{Adapter: adapter, From: 1})
	require.NoError(t, err)

	orchestrator, err := replayer.New(replayer.Params{Store: st, Stream: "entity_manager"})
	require.NoError(t, err)

	w, err := New(Params{
		Stream:           "entity_manager",
		Store:            st,
		Router:           router,
		Orchestrator:     orchestrator,
		StartHeight:      startHeight,
		PollInterval:     time.Millisecond,
		FetchRetryBudget: time.Millisecond,
	})
	require.NoError(t, err)
	return w
}

func TestRunOnceCatchesUpToTip(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	adapter := &stubAdapter{
		tip: 3,
		batches: map[uint64]*domain.BlockBatch{
			1: {
				Height:    1,
				Slot:      1,
				Hash:      "0xblock1",
				Timestamp: time.Unix(1700000001, 0).UTC(),
				Txs: []domain.ManageEntityTx{{
					UserID:     3_000_001,
					EntityType: domain.EntityTypeUser,
					Action:     domain.ActionCreate,
					Metadata:   `{"handle":"alice","name":"Alice","wallet":"0xa1"}`,
					Signer:     "0xa1",
					TxHash:     "0xtx1",
				}},
			},
		},
	}
	w := newTestWorker(t, st, adapter, 0)

	require.NoError(t, w.runOnce(ctx))
	assert.Equal(t, []uint64{1, 2, 3}, adapter.fetched)

	cp, err := st.GetCheckpoint(ctx, "entity_manager")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), cp)

	snap, err := st.LoadSnapshot(ctx, &store.FetchRefs{Users: []int32{3_000_001}})
	require.NoError(t, err)
	user, ok := snap.User(3_000_001)
	require.True(t, ok)
	assert.Equal(t, "alice", user.Handle)

	// Caught up: another pass fetches nothing new.
	require.NoError(t, w.runOnce(ctx))
	assert.Equal(t, []uint64{1, 2, 3}, adapter.fetched)
}

func TestRunOnceFetchFailureKeepsCheckpoint(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	adapter := &stubAdapter{
		tip:    3,
		failAt: map[uint64]error{2: fmt.Errorf("rpc down")},
	}
	w := newTestWorker(t, st, adapter, 0)

	err := w.runOnce(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "block 2")

	// Block 1 committed; the failed height is retried next pass.
	cp, err := st.GetCheckpoint(ctx, "entity_manager")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), cp)

	delete(adapter.failAt, 2)
	require.NoError(t, w.runOnce(ctx))
	cp, err = st.GetCheckpoint(ctx, "entity_manager")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), cp)
}

func TestRunOnceHonorsStartHeight(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	adapter := &stubAdapter{tip: 6}
	w := newTestWorker(t, st, adapter, 5)

	require.NoError(t, w.runOnce(ctx))
	assert.Equal(t, []uint64{5, 6}, adapter.fetched)

	cp, err := st.GetCheckpoint(ctx, "entity_manager")
	require.NoError(t, err)
	assert.Equal(t, uint64(6), cp)
}

func TestNewValidatesParams(t *testing.T) {
	_, err := New(Params{})
	assert.Error(t, err)
}

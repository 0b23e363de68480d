package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/openaudio/discovery-indexer/internal/domain"
	"github.com/openaudio/discovery-indexer/internal/store"
	"github.com/openaudio/discovery-indexer/internal/store/schema"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// One connection so every session sees the same in-memory database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&schema.User{},
		&schema.Track{},
		&schema.Playlist{},
		&schema.Follow{},
		&schema.Repost{},
		&schema.Save{},
		&schema.Subscription{},
		&schema.MutedUser{},
		&schema.NotificationSeen{},
		&schema.PlaylistSeen{},
		&schema.Grant{},
		&schema.DeveloperApp{},
		&schema.TipReaction{},
		&schema.SkippedTransaction{},
		&schema.IndexingCheckpoint{},
		&schema.ChallengeEvent{},
	))
	return db
}

func blockMeta(height uint64, txhash string) schema.BlockMeta {
	return schema.BlockMeta{
		Blocknumber: height,
		Blockhash:   "0xblock",
		Txhash:      txhash,
		Slot:        height,
		Timestamp:   time.Unix(1700000000, 0).UTC(),
	}
}

func stageOne(rec schema.Versioned) map[domain.EntityType]map[string][]schema.Versioned {
	return map[domain.EntityType]map[string][]schema.Versioned{
		rec.Type(): {rec.Key(): {rec}},
	}
}

func TestCommitBlockAndLoadSnapshot(t *testing.T) {
	ctx := context.Background()
	st := store.NewPGStore(newTestDB(t))

	user := &schema.User{
		UserID:      3_000_001,
		Handle:      "alice",
		Wallet:      "0xaaa",
		BlockFields: schema.NewBlockFields(blockMeta(1, "0xtx1")),
	}
	require.NoError(t, st.CommitBlock(ctx, &store.BlockCommit{
		Stream: "entity_manager",
		Height: 1,
		Staged: stageOne(user),
	}))

	snap, err := st.LoadSnapshot(ctx, &store.FetchRefs{Users: []int32{3_000_001}})
	require.NoError(t, err)
	got, ok := snap.User(3_000_001)
	require.True(t, ok)
	assert.Equal(t, "alice", got.Handle)
	assert.True(t, got.Current())

	cp, err := st.GetCheckpoint(ctx, "entity_manager")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), cp)
}

func TestCommitBlockMutationKeepsOneCurrent(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	st := store.NewPGStore(db)

	user := &schema.User{UserID: 3_000_001, Handle: "alice", Wallet: "0xaaa", BlockFields: schema.NewBlockFields(blockMeta(1, "0xtx1"))}
	require.NoError(t, st.CommitBlock(ctx, &store.BlockCommit{Stream: "s", Height: 1, Staged: stageOne(user)}))

	next := user.CopyForward(blockMeta(2, "0xtx2")).(*schema.User)
	next.Handle = "alice2"
	require.NoError(t, st.CommitBlock(ctx, &store.BlockCommit{Stream: "s", Height: 2, Staged: stageOne(next)}))

	var total, current int64
	require.NoError(t, db.Model(&schema.User{}).Count(&total).Error)
	require.NoError(t, db.Model(&schema.User{}).Where("is_current = ?", true).Count(&current).Error)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, int64(1), current)

	snap, err := st.LoadSnapshot(ctx, &store.FetchRefs{Users: []int32{3_000_001}})
	require.NoError(t, err)
	got, _ := snap.User(3_000_001)
	assert.Equal(t, "alice2", got.Handle)
	assert.Equal(t, "0xtx2", got.TxHash())
}

func TestCommitBlockIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	st := store.NewPGStore(db)

	user := &schema.User{UserID: 3_000_001, Handle: "alice", Wallet: "0xaaa", BlockFields: schema.NewBlockFields(blockMeta(1, "0xtx1"))}
	require.NoError(t, st.CommitBlock(ctx, &store.BlockCommit{Stream: "s", Height: 1, Staged: stageOne(user)}))

	next := user.CopyForward(blockMeta(2, "0xtx2")).(*schema.User)
	next.Handle = "alice2"
	commit := &store.BlockCommit{Stream: "s", Height: 2, Staged: stageOne(next)}
	require.NoError(t, st.CommitBlock(ctx, commit))

	// Replaying the identical block must change nothing: the insert hits
	// the primary key and the flip guard skips rows from the same tx.
	replayed := user.CopyForward(blockMeta(2, "0xtx2")).(*schema.User)
	replayed.Handle = "alice2"
	require.NoError(t, st.CommitBlock(ctx, &store.BlockCommit{Stream: "s", Height: 2, Staged: stageOne(replayed)}))

	var total, current int64
	require.NoError(t, db.Model(&schema.User{}).Count(&total).Error)
	require.NoError(t, db.Model(&schema.User{}).Where("is_current = ?", true).Count(&current).Error)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, int64(1), current)

	snap, err := st.LoadSnapshot(ctx, &store.FetchRefs{Users: []int32{3_000_001}})
	require.NoError(t, err)
	got, _ := snap.User(3_000_001)
	assert.Equal(t, "0xtx2", got.TxHash())
	assert.True(t, got.Current())
}

func TestCommitBlockOnlyLastStagedVersionPersists(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	st := store.NewPGStore(db)

	v1 := &schema.Track{TrackID: 2_000_001, OwnerID: 1, Title: "draft", BlockFields: schema.NewBlockFields(blockMeta(1, "0xa"))}
	v2 := v1.CopyForward(blockMeta(1, "0xb")).(*schema.Track)
	v2.Title = "final"

	staged := map[domain.EntityType]map[string][]schema.Versioned{
		domain.EntityTypeTrack: {v1.Key(): {v1, v2}},
	}
	require.NoError(t, st.CommitBlock(ctx, &store.BlockCommit{Stream: "s", Height: 1, Staged: staged}))

	var total int64
	require.NoError(t, db.Model(&schema.Track{}).Count(&total).Error)
	assert.Equal(t, int64(1), total)

	snap, err := st.LoadSnapshot(ctx, &store.FetchRefs{Tracks: []int32{2_000_001}})
	require.NoError(t, err)
	rec, ok := snap.Get(domain.EntityTypeTrack, v1.Key())
	require.True(t, ok)
	assert.Equal(t, "final", rec.(*schema.Track).Title)
}

func TestCheckpointNeverMovesBackwards(t *testing.T) {
	ctx := context.Background()
	st := store.NewPGStore(newTestDB(t))

	require.NoError(t, st.CommitBlock(ctx, &store.BlockCommit{Stream: "s", Height: 5}))
	require.NoError(t, st.CommitBlock(ctx, &store.BlockCommit{Stream: "s", Height: 3}))

	cp, err := st.GetCheckpoint(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), cp)

	cps, err := st.ListCheckpoints(ctx)
	require.NoError(t, err)
	require.Len(t, cps, 1)
	assert.Equal(t, "s", cps[0].Tablename)
}

func TestGetCheckpointMissingIsZero(t *testing.T) {
	st := store.NewPGStore(newTestDB(t))
	cp, err := st.GetCheckpoint(context.Background(), "nope")
	require.NoError(t, err)
	assert.Zero(t, cp)
}

func TestSkippedTransactionLedger(t *testing.T) {
	ctx := context.Background()
	st := store.NewPGStore(newTestDB(t))

	skip := &schema.SkippedTransaction{
		Blocknumber: 7,
		Blockhash:   "0xblock",
		Txhash:      "0xtx",
		Message:     "boom",
		Level:       schema.SkipLevelUnconfirmed,
	}
	require.NoError(t, st.CommitBlock(ctx, &store.BlockCommit{
		Stream:  "s",
		Height:  7,
		Skipped: []*schema.SkippedTransaction{skip},
	}))

	// Replaying the block re-records the same skip; the unique index
	// keeps the ledger append-once.
	dup := &schema.SkippedTransaction{Blocknumber: 7, Blockhash: "0xblock", Txhash: "0xtx", Message: "boom", Level: schema.SkipLevelUnconfirmed}
	require.NoError(t, st.CommitBlock(ctx, &store.BlockCommit{Stream: "s", Height: 7, Skipped: []*schema.SkippedTransaction{dup}}))

	got, err := st.GetSkipped(ctx, 7, "0xblock", "0xtx")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, schema.SkipLevelUnconfirmed, got.Level)

	require.NoError(t, st.ConfirmSkip(ctx, got.ID))
	got, err = st.GetSkipped(ctx, 7, "0xblock", "0xtx")
	require.NoError(t, err)
	assert.Equal(t, schema.SkipLevelNetwork, got.Level)

	missing, err := st.GetSkipped(ctx, 8, "0xblock", "0xtx")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestChallengeEventOutbox(t *testing.T) {
	ctx := context.Background()
	st := store.NewPGStore(newTestDB(t))

	events := []*schema.ChallengeEvent{
		{ID: "follow:0xtx:1", EventType: "follow", BlockNumber: 1, BlockDatetime: time.Unix(1700000000, 0), UserID: 1},
		{ID: "repost:0xtx:1", EventType: "repost", BlockNumber: 1, BlockDatetime: time.Unix(1700000000, 0), UserID: 1},
	}
	require.NoError(t, st.CommitBlock(ctx, &store.BlockCommit{Stream: "s", Height: 1, Events: events}))

	// Replay inserts the same deterministic IDs without duplicating.
	require.NoError(t, st.CommitBlock(ctx, &store.BlockCommit{Stream: "s", Height: 1, Events: events}))

	listed, err := st.ListChallengeEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, listed, 2)

	require.NoError(t, st.DeleteChallengeEvents(ctx, []string{"follow:0xtx:1"}))
	listed, err = st.ListChallengeEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "repost:0xtx:1", listed[0].ID)
}

func TestLoadSnapshotJoinEntities(t *testing.T) {
	ctx := context.Background()
	st := store.NewPGStore(newTestDB(t))

	follow := &schema.Follow{FollowerUserID: 1, FolloweeUserID: 2, BlockFields: schema.NewBlockFields(blockMeta(1, "0xf"))}
	repost := &schema.Repost{UserID: 1, RepostItemID: 9, RepostType: schema.TargetTrack, BlockFields: schema.NewBlockFields(blockMeta(1, "0xr"))}
	staged := map[domain.EntityType]map[string][]schema.Versioned{
		domain.EntityTypeFollow: {follow.Key(): {follow}},
		domain.EntityTypeRepost: {repost.Key(): {repost}},
	}
	require.NoError(t, st.CommitBlock(ctx, &store.BlockCommit{Stream: "s", Height: 1, Staged: staged}))

	snap, err := st.LoadSnapshot(ctx, &store.FetchRefs{
		Follows: []store.PairRef{{A: 1, B: 2}},
		Reposts: []store.ItemRef{{UserID: 1, ItemID: 9}},
	})
	require.NoError(t, err)

	_, ok := snap.Get(domain.EntityTypeFollow, follow.Key())
	assert.True(t, ok)
	_, ok = snap.Get(domain.EntityTypeRepost, repost.Key())
	assert.True(t, ok)
}

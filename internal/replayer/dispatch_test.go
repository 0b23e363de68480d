package replayer

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/openaudio/discovery-indexer/internal/domain"
	"github.com/openaudio/discovery-indexer/internal/replayer/entities"
	"github.com/openaudio/discovery-indexer/internal/store"
	"github.com/openaudio/discovery-indexer/internal/store/schema"
)

func newDispatchStore(t *testing.T) store.Store {
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

type recordingVerifier struct {
	calls chan string
}

func (v *recordingVerifier) VerifySkip(blocknumber uint64, blockhash, txhash, message string) {
	v.calls <- txhash
}

func TestPanickingHandlerLandsInSkipLedger(t *testing.T) {
	ctx := context.Background()
	st := newDispatchStore(t)
	verifier := &recordingVerifier{calls: make(chan string, 1)}

	o, err := New(Params{Store: st, Stream: "entity_manager", Verifier: verifier})
	require.NoError(t, err)

	o.registry[entities.DispatchKey{Entity: domain.EntityTypeUser, Action: domain.ActionCreate}] =
		func(env *entities.Env, tx *domain.ManageEntityTx) error {
			var user *schema.User
			return domain.Rejectf("handle %s", user.Handle)
		}

	batch := &domain.BlockBatch{
		Height:    1,
		Slot:      1,
		Hash:      "0xblock1",
		Timestamp: time.Unix(1700000000, 0).UTC(),
		Txs: []domain.ManageEntityTx{{
			UserID:     3_000_001,
			EntityType: domain.EntityTypeUser,
			Action:     domain.ActionCreate,
			Metadata:   `{"handle":"alice","wallet":"0xa1"}`,
			Signer:     "0xa1",
			TxHash:     "0xboom",
		}},
	}

	// The block still commits; the bad transaction goes to the ledger.
	require.NoError(t, o.ProcessBlock(ctx, batch))

	cp, err := st.GetCheckpoint(ctx, "entity_manager")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), cp)

	skip, err := st.GetSkipped(ctx, 1, "0xblock1", "0xboom")
	require.NoError(t, err)
	require.NotNil(t, skip)
	assert.Equal(t, schema.SkipLevelUnconfirmed, skip.Level)
	assert.Contains(t, skip.Message, "panicked")

	// A panic is an unexpected failure, so it goes to the peer check.
	select {
	case txhash := <-verifier.calls:
		assert.Equal(t, "0xboom", txhash)
	case <-time.After(time.Second):
		t.Fatal("expected a consensus check for the panicked transaction")
	}
}

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/openaudio/discovery-indexer/internal/domain"
	"github.com/openaudio/discovery-indexer/internal/store/schema"
)

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL-backed store instance.
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// ConfigureConnectionPool configures the pool settings of the
// underlying sql.DB. Zero values fall back to defaults suitable for a
// single-writer indexing worker.
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if maxOpenConns == 0 {
		maxOpenConns = 10
	}
	if maxIdleConns == 0 {
		maxIdleConns = 2
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	return nil
}

// pairs converts PairRefs to the tuple-IN form gorm expects.
func pairs(refs []PairRef) [][]any {
	out := make([][]any, 0, len(refs))
	for _, r := range refs {
		out = append(out, []any{r.A, r.B})
	}
	return out
}

// LoadSnapshot bulk-loads the current rows for every referenced entity,
// one query per entity type.
func (s *pgStore) LoadSnapshot(ctx context.Context, refs *FetchRefs) (*Snapshot, error) {
	snap := NewSnapshot()
	db := s.db.WithContext(ctx)

	if len(refs.Users) > 0 {
		var users []*schema.User
		if err := db.Where("user_id IN ? AND is_current = ?", refs.Users, true).Find(&users).Error; err != nil {
			return nil, fmt.Errorf("failed to load users: %w", err)
		}
		for _, u := range users {
			snap.Put(u)
		}
	}

	if len(refs.Tracks) > 0 {
		var tracks []*schema.Track
		if err := db.Where("track_id IN ? AND is_current = ?", refs.Tracks, true).Find(&tracks).Error; err != nil {
			return nil, fmt.Errorf("failed to load tracks: %w", err)
		}
		for _, t := range tracks {
			snap.Put(t)
		}
	}

	if len(refs.Playlists) > 0 {
		var playlists []*schema.Playlist
		if err := db.Where("playlist_id IN ? AND is_current = ?", refs.Playlists, true).Find(&playlists).Error; err != nil {
			return nil, fmt.Errorf("failed to load playlists: %w", err)
		}
		for _, p := range playlists {
			snap.Put(p)
		}
	}

	if len(refs.Follows) > 0 {
		var follows []*schema.Follow
		if err := db.Where("(follower_user_id, followee_user_id) IN ? AND is_current = ?", pairs(refs.Follows), true).
			Find(&follows).Error; err != nil {
			return nil, fmt.Errorf("failed to load follows: %w", err)
		}
		for _, f := range follows {
			snap.Put(f)
		}
	}

	if len(refs.Reposts) > 0 {
		keys := make([][]any, 0, len(refs.Reposts))
		for _, r := range refs.Reposts {
			keys = append(keys, []any{r.UserID, r.ItemID})
		}
		var reposts []*schema.Repost
		if err := db.Where("(user_id, repost_item_id) IN ? AND is_current = ?", keys, true).
			Find(&reposts).Error; err != nil {
			return nil, fmt.Errorf("failed to load reposts: %w", err)
		}
		for _, r := range reposts {
			snap.Put(r)
		}
	}

	if len(refs.Saves) > 0 {
		keys := make([][]any, 0, len(refs.Saves))
		for _, r := range refs.Saves {
			keys = append(keys, []any{r.UserID, r.ItemID})
		}
		var saves []*schema.Save
		if err := db.Where("(user_id, save_item_id) IN ? AND is_current = ?", keys, true).
			Find(&saves).Error; err != nil {
			return nil, fmt.Errorf("failed to load saves: %w", err)
		}
		for _, sv := range saves {
			snap.Put(sv)
		}
	}

	if len(refs.Subscriptions) > 0 {
		var subs []*schema.Subscription
		if err := db.Where("(subscriber_id, user_id) IN ? AND is_current = ?", pairs(refs.Subscriptions), true).
			Find(&subs).Error; err != nil {
			return nil, fmt.Errorf("failed to load subscriptions: %w", err)
		}
		for _, sub := range subs {
			snap.Put(sub)
		}
	}

	if len(refs.Mutes) > 0 {
		var mutes []*schema.MutedUser
		if err := db.Where("(user_id, muted_user_id) IN ? AND is_current = ?", pairs(refs.Mutes), true).
			Find(&mutes).Error; err != nil {
			return nil, fmt.Errorf("failed to load muted users: %w", err)
		}
		for _, m := range mutes {
			snap.Put(m)
		}
	}

	if len(refs.PlaylistSeens) > 0 {
		var seens []*schema.PlaylistSeen
		if err := db.Where("(user_id, playlist_id) IN ? AND is_current = ?", pairs(refs.PlaylistSeens), true).
			Find(&seens).Error; err != nil {
			return nil, fmt.Errorf("failed to load playlist seens: %w", err)
		}
		for _, se := range seens {
			snap.Put(se)
		}
	}

	if len(refs.Grants) > 0 {
		keys := make([][]any, 0, len(refs.Grants))
		for _, g := range refs.Grants {
			keys = append(keys, []any{domain.NormalizeWallet(g.GranteeAddress), g.UserID})
		}
		var grants []*schema.Grant
		if err := db.Where("(grantee_address, user_id) IN ? AND is_current = ?", keys, true).
			Find(&grants).Error; err != nil {
			return nil, fmt.Errorf("failed to load grants: %w", err)
		}
		for _, g := range grants {
			snap.Put(g)
		}
	}

	if len(refs.Apps) > 0 {
		addresses := make([]string, 0, len(refs.Apps))
		for _, a := range refs.Apps {
			addresses = append(addresses, domain.NormalizeWallet(a))
		}
		var apps []*schema.DeveloperApp
		if err := db.Where("address IN ? AND is_current = ?", addresses, true).Find(&apps).Error; err != nil {
			return nil, fmt.Errorf("failed to load developer apps: %w", err)
		}
		for _, a := range apps {
			snap.Put(a)
		}
	}

	if len(refs.Tips) > 0 {
		keys := make([][]any, 0, len(refs.Tips))
		for _, t := range refs.Tips {
			keys = append(keys, []any{t.UserID, t.ReactedTo})
		}
		var tips []*schema.TipReaction
		if err := db.Where("(user_id, reacted_to) IN ? AND is_current = ?", keys, true).
			Find(&tips).Error; err != nil {
			return nil, fmt.Errorf("failed to load tip reactions: %w", err)
		}
		for _, t := range tips {
			snap.Put(t)
		}
	}

	return snap, nil
}

// retireCurrentRow flips the previous current version of rec's logical
// entity to is_current = false. Rows stamped with rec's own txhash are
// left alone so that re-replaying a committed block does not demote the
// row it inserted the first time around.
func retireCurrentRow(tx *gorm.DB, rec schema.Versioned) error {
	q := tx.Where("is_current = ? AND txhash <> ?", true, rec.TxHash())

	switch r := rec.(type) {
	case *schema.User:
		q = q.Model(&schema.User{}).Where("user_id = ?", r.UserID)
	case *schema.Track:
		q = q.Model(&schema.Track{}).Where("track_id = ?", r.TrackID)
	case *schema.Playlist:
		q = q.Model(&schema.Playlist{}).Where("playlist_id = ?", r.PlaylistID)
	case *schema.Follow:
		q = q.Model(&schema.Follow{}).Where("follower_user_id = ? AND followee_user_id = ?", r.FollowerUserID, r.FolloweeUserID)
	case *schema.Repost:
		q = q.Model(&schema.Repost{}).Where("user_id = ? AND repost_item_id = ? AND repost_type = ?", r.UserID, r.RepostItemID, r.RepostType)
	case *schema.Save:
		q = q.Model(&schema.Save{}).Where("user_id = ? AND save_item_id = ? AND save_type = ?", r.UserID, r.SaveItemID, r.SaveType)
	case *schema.Subscription:
		q = q.Model(&schema.Subscription{}).Where("subscriber_id = ? AND user_id = ?", r.SubscriberID, r.UserID)
	case *schema.MutedUser:
		q = q.Model(&schema.MutedUser{}).Where("user_id = ? AND muted_user_id = ?", r.UserID, r.MutedUserID)
	case *schema.NotificationSeen:
		q = q.Model(&schema.NotificationSeen{}).Where("user_id = ? AND seen_at = ?", r.UserID, r.SeenAt)
	case *schema.PlaylistSeen:
		q = q.Model(&schema.PlaylistSeen{}).Where("user_id = ? AND playlist_id = ?", r.UserID, r.PlaylistID)
	case *schema.Grant:
		q = q.Model(&schema.Grant{}).Where("grantee_address = ? AND user_id = ?", r.GranteeAddress, r.UserID)
	case *schema.DeveloperApp:
		q = q.Model(&schema.DeveloperApp{}).Where("address = ?", r.Address)
	case *schema.TipReaction:
		q = q.Model(&schema.TipReaction{}).Where("user_id = ? AND reacted_to = ?", r.UserID, r.ReactedTo)
	default:
		return fmt.Errorf("unknown versioned record type %T", rec)
	}

	return q.Update("is_current", false).Error
}

// CommitBlock writes one block's results in a single transaction:
// retire-and-insert for every staged entity, skipped transaction
// entries, challenge outbox events and the checkpoint advance. Inserts
// use ON CONFLICT DO NOTHING on the composite primary key, which is
// what turns a duplicate replay of the same block into a no-op.
func (s *pgStore) CommitBlock(ctx context.Context, commit *BlockCommit) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, byKey := range commit.Staged {
			for _, versions := range byKey {
				if len(versions) == 0 {
					continue
				}
				// When one block touches the same entity several times,
				// only the last staged version becomes a row; the
				// intermediates only ever existed in the batch view.
				final := versions[len(versions)-1]
				final.SetCurrent(true)

				if err := retireCurrentRow(tx, final); err != nil {
					return fmt.Errorf("failed to retire current row: %w", err)
				}
				if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(final).Error; err != nil {
					return fmt.Errorf("failed to insert new row version: %w", err)
				}
			}
		}

		for _, skipped := range commit.Skipped {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(skipped).Error; err != nil {
				return fmt.Errorf("failed to record skipped transaction: %w", err)
			}
		}

		for _, event := range commit.Events {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(event).Error; err != nil {
				return fmt.Errorf("failed to enqueue challenge event: %w", err)
			}
		}

		return advanceCheckpoint(tx, commit.Stream, commit.Height)
	})
}

// advanceCheckpoint moves a stream checkpoint forward. Never moves
// backwards: a concurrent or repeated commit of an older block leaves
// the checkpoint alone.
func advanceCheckpoint(tx *gorm.DB, tablename string, height uint64) error {
	var cp schema.IndexingCheckpoint
	err := tx.Where("tablename = ?", tablename).First(&cp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		cp = schema.IndexingCheckpoint{Tablename: tablename, LastCheckpoint: height}
		if err := tx.Create(&cp).Error; err != nil {
			return fmt.Errorf("failed to create checkpoint: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read checkpoint: %w", err)
	}
	if cp.LastCheckpoint >= height {
		return nil
	}
	if err := tx.Model(&schema.IndexingCheckpoint{}).
		Where("tablename = ?", tablename).
		Update("last_checkpoint", height).Error; err != nil {
		return fmt.Errorf("failed to advance checkpoint: %w", err)
	}
	return nil
}

// GetCheckpoint returns the last processed height for a stream, 0 if none.
func (s *pgStore) GetCheckpoint(ctx context.Context, tablename string) (uint64, error) {
	var cp schema.IndexingCheckpoint
	err := s.db.WithContext(ctx).Where("tablename = ?", tablename).First(&cp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get checkpoint: %w", err)
	}
	return cp.LastCheckpoint, nil
}

// ListCheckpoints returns all stream checkpoints.
func (s *pgStore) ListCheckpoints(ctx context.Context) ([]schema.IndexingCheckpoint, error) {
	var cps []schema.IndexingCheckpoint
	if err := s.db.WithContext(ctx).Order("tablename").Find(&cps).Error; err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	return cps, nil
}

// GetSkipped looks up a ledger entry by chain position.
func (s *pgStore) GetSkipped(ctx context.Context, blocknumber uint64, blockhash, txhash string) (*schema.SkippedTransaction, error) {
	var skipped schema.SkippedTransaction
	err := s.db.WithContext(ctx).
		Where("blocknumber = ? AND blockhash = ? AND txhash = ?", blocknumber, blockhash, txhash).
		First(&skipped).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get skipped transaction: %w", err)
	}
	return &skipped, nil
}

// ConfirmSkip upgrades a ledger entry to the network-confirmed level.
func (s *pgStore) ConfirmSkip(ctx context.Context, id uint64) error {
	err := s.db.WithContext(ctx).
		Model(&schema.SkippedTransaction{}).
		Where("id = ?", id).
		Update("level", schema.SkipLevelNetwork).Error
	if err != nil {
		return fmt.Errorf("failed to confirm skipped transaction: %w", err)
	}
	return nil
}

// ListChallengeEvents returns up to limit outbox events, oldest first.
func (s *pgStore) ListChallengeEvents(ctx context.Context, limit int) ([]*schema.ChallengeEvent, error) {
	var events []*schema.ChallengeEvent
	if err := s.db.WithContext(ctx).Order("created_at, id").Limit(limit).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to list challenge events: %w", err)
	}
	return events, nil
}

// DeleteChallengeEvents removes published outbox events.
func (s *pgStore) DeleteChallengeEvents(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&schema.ChallengeEvent{}).Error; err != nil {
		return fmt.Errorf("failed to delete challenge events: %w", err)
	}
	return nil
}

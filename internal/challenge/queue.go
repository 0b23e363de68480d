// Package challenge implements the reward-challenge outbox. Handlers
// dispatch events into an in-memory queue while a block replays; the
// queue is flushed into the block's commit transaction, and a separate
// relay process drains the table to the message broker.
package challenge

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/openaudio/discovery-indexer/internal/store/schema"
)

// Challenge event types recognized by the rewards pipeline.
const (
	EventFollow        = "follow"
	EventRepost        = "repost"
	EventFavorite      = "favorite"
	EventTrackUpload   = "track_upload"
	EventFirstPlaylist = "first_playlist"
)

// Queue collects challenge events for a single block. Not safe for
// concurrent use; one queue lives exactly as long as one block replay.
type Queue struct {
	blockNumber   uint64
	blockDatetime time.Time
	events        []*schema.ChallengeEvent
}

// NewQueue creates a queue bound to a block position.
func NewQueue(blockNumber uint64, blockDatetime time.Time) *Queue {
	return &Queue{blockNumber: blockNumber, blockDatetime: blockDatetime}
}

// Dispatch enqueues one event. The ID is derived from the event type,
// transaction and user, so replaying a block enqueues the same IDs and
// the outbox insert dedupes on primary key.
func (q *Queue) Dispatch(eventType, txhash string, userID int32, extra map[string]any) {
	var payload datatypes.JSON
	if len(extra) > 0 {
		if raw, err := json.Marshal(extra); err == nil {
			payload = datatypes.JSON(raw)
		}
	}
	q.events = append(q.events, &schema.ChallengeEvent{
		ID:            fmt.Sprintf("%s:%s:%d", eventType, txhash, userID),
		EventType:     eventType,
		BlockNumber:   q.blockNumber,
		BlockDatetime: q.blockDatetime,
		UserID:        userID,
		Extra:         payload,
	})
}

// Flush returns the collected events for the block commit.
func (q *Queue) Flush() []*schema.ChallengeEvent {
	return q.events
}

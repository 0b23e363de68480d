package challenge

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchBuildsDeterministicEvents(t *testing.T) {
	blockTime := time.Unix(1700000000, 0).UTC()
	q := NewQueue(42, blockTime)

	q.Dispatch(EventFollow, "0xtx1", 3_000_001, nil)
	q.Dispatch(EventTrackUpload, "0xtx2", 3_000_002, map[string]any{"track_id": 2_000_001})

	events := q.Flush()
	require.Len(t, events, 2)

	follow := events[0]
	assert.Equal(t, "follow:0xtx1:3000001", follow.ID)
	assert.Equal(t, EventFollow, follow.EventType)
	assert.Equal(t, uint64(42), follow.BlockNumber)
	assert.Equal(t, blockTime, follow.BlockDatetime)
	assert.Equal(t, int32(3_000_001), follow.UserID)
	assert.Empty(t, follow.Extra)

	upload := events[1]
	assert.Equal(t, "track_upload:0xtx2:3000002", upload.ID)

	var extra map[string]any
	require.NoError(t, json.Unmarshal(upload.Extra, &extra))
	assert.Equal(t, float64(2_000_001), extra["track_id"])
}

func TestDispatchSameInputsSameID(t *testing.T) {
	a := NewQueue(1, time.Now())
	b := NewQueue(1, time.Now())
	a.Dispatch(EventRepost, "0xtx", 7, nil)
	b.Dispatch(EventRepost, "0xtx", 7, nil)
	assert.Equal(t, a.Flush()[0].ID, b.Flush()[0].ID)
}

func TestFlushEmptyQueue(t *testing.T) {
	assert.Empty(t, NewQueue(1, time.Now()).Flush())
}

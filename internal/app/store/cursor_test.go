package store

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"blip/internal/app/chat"
)

func seqRow(seq int64, id string) seqMessage {
	return seqMessage{seq: seq, msg: chat.Message{ID: id}}
}

func TestFeedCursorStartsUnprimed(t *testing.T) {
	var c feedCursor

	_, primed := c.position()
	assert.False(t, primed)

	c.prime(41)
	last, primed := c.position()
	assert.True(t, primed)
	assert.Equal(t, int64(41), last)
}

func TestFeedCursorTracksDeliveredRows(t *testing.T) {
	var c feedCursor
	c.prime(0)

	assert.True(t, c.accept(seqRow(3, "a")))
	// commits can be notified out of seq order
	assert.True(t, c.accept(seqRow(2, "b")))

	last, _ := c.position()
	assert.Equal(t, int64(3), last)
}

func TestFeedCursorSkipsNotificationsOfReplayedRows(t *testing.T) {
	var c feedCursor
	c.prime(10)

	// rows inserted while the listener was down, the last one after LISTEN resumed
	got := c.replay([]seqMessage{seqRow(11, "gap1"), seqRow(12, "gap2"), seqRow(13, "both")})
	ids := []string{}
	for _, m := range got {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"gap1", "gap2", "both"}, ids)

	last, _ := c.position()
	assert.Equal(t, int64(13), last)

	assert.False(t, c.accept(seqRow(13, "both")))
	assert.True(t, c.accept(seqRow(14, "after")))
	// a replayed row is skipped only once
	assert.True(t, c.accept(seqRow(13, "both")))
}

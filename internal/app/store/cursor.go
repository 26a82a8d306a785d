package store

import (
	"sync"

	"blip/internal/app/chat"
)

// seqMessage is a log row with its insertion sequence.
type seqMessage struct {
	seq int64
	msg chat.Message
}

// feedCursor remembers how far a change feed got, so a restarted listener can replay the
// rows inserted while no LISTEN was active. Rows delivered by the replay and then notified
// again are skipped once.
type feedCursor struct {
	mu       sync.Mutex
	last     int64
	primed   bool
	replayed map[string]struct{}
}

// position returns the highest delivered seq and whether the cursor has a starting point.
func (c *feedCursor) position() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.last, c.primed
}

// prime sets the starting point of the first listen; nothing before it is replayed.
func (c *feedCursor) prime(seq int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.last = seq
	c.primed = true
	c.replayed = nil
}

// replay records rows fetched after a restart and returns them in delivery order.
func (c *feedCursor) replay(rows []seqMessage) []chat.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.replayed = make(map[string]struct{}, len(rows))
	out := make([]chat.Message, 0, len(rows))
	for _, row := range rows {
		c.replayed[row.msg.ID] = struct{}{}
		c.advanceLocked(row.seq)
		out = append(out, row.msg)
	}
	return out
}

// accept reports whether a notified row still has to be delivered.
func (c *feedCursor) accept(row seqMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.replayed[row.msg.ID]; ok {
		delete(c.replayed, row.msg.ID)
		return false
	}
	c.advanceLocked(row.seq)
	return true
}

func (c *feedCursor) advanceLocked(seq int64) {
	if seq > c.last {
		c.last = seq
	}
}

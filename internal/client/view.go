package client

import (
	"sort"
	"sync"

	"blip/internal/app/chat"
	"blip/internal/pkg/errs"
)

// View is the ordered, de-duplicated list of messages a viewer sees. History backfill and
// live arrivals are both applied to it; a message id is only ever shown once.
type View struct {
	mu       sync.Mutex
	messages []chat.Message
	seen     map[string]struct{}
	closed   bool
}

// NewView returns an empty view.
func NewView() *View {
	return &View{seen: make(map[string]struct{})}
}

// Apply inserts m in created_at order, after any message with the same timestamp.
// It reports false for an id already present and fails with ErrStaleView once closed.
func (v *View) Apply(m chat.Message) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.applyLocked(m)
}

func (v *View) applyLocked(m chat.Message) (bool, error) {
	if v.closed {
		return false, errs.NewError(errs.ErrStaleView)
	}

	if _, dup := v.seen[m.ID]; dup {
		return false, nil
	}
	v.seen[m.ID] = struct{}{}

	i := sort.Search(len(v.messages), func(i int) bool {
		return v.messages[i].CreatedAt.After(m.CreatedAt)
	})

	v.messages = append(v.messages, chat.Message{})
	copy(v.messages[i+1:], v.messages[i:])
	v.messages[i] = m

	return true, nil
}

// ApplyAll applies every message and returns how many were new.
func (v *View) ApplyAll(messages []chat.Message) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	added := 0
	for _, m := range messages {
		ok, err := v.applyLocked(m)
		if err != nil {
			return added, err
		}
		if ok {
			added++
		}
	}
	return added, nil
}

// Messages returns a snapshot of the view.
func (v *View) Messages() []chat.Message {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make([]chat.Message, len(v.messages))
	copy(out, v.messages)
	return out
}

// Len returns the number of messages shown.
func (v *View) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()

	return len(v.messages)
}

// Close marks the view torn down. Later results are rejected.
func (v *View) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.closed = true
}

// Closed reports whether Close was called.
func (v *View) Closed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.closed
}

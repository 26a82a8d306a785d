/*
Package store implements the narrow storage views used by the registry and the chat log.

This file defines Memory, an in-process implementation used in development and tests. It keeps
the same contract as the PostgreSQL store: a unique, case-insensitive display name index, an
insert-only chat log ordered by created_at then insertion sequence, and a change feed that
reports every append.
*/
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"blip/internal/app/chat"
	"blip/internal/app/registry"
)

// feedBuffer is the per-listener queue of appended messages not yet consumed.
const feedBuffer = 1024

// Visit is one entry of the visit log.
type Visit struct {
	UserID    string
	IP        string
	CreatedAt time.Time
}

type storedMessage struct {
	seq int64
	msg chat.Message
}

// Memory is a goroutine-safe in-memory store.
type Memory struct {
	mu       sync.RWMutex
	users    map[string]registry.Record // by user id
	names    map[string]string          // lower(display name) -> user id
	messages []storedMessage
	visits   []Visit
	seq      int64

	listenersMu sync.Mutex
	listeners   map[chan chat.Message]chan struct{}

	now func() time.Time
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		users:     make(map[string]registry.Record),
		names:     make(map[string]string),
		listeners: make(map[chan chat.Message]chan struct{}),
		now:       time.Now,
	}
}

// LookupByName returns the record whose display name matches case-insensitively.
func (m *Memory) LookupByName(_ context.Context, displayName string) (*registry.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	userID, ok := m.names[strings.ToLower(displayName)]
	if !ok {
		return nil, nil
	}

	rec := cloneRecord(m.users[userID])
	return &rec, nil
}

// LookupByUserID returns the record of userID, or nil.
func (m *Memory) LookupByUserID(_ context.Context, userID string) (*registry.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.users[userID]
	if !ok {
		return nil, nil
	}

	rec = cloneRecord(rec)
	return &rec, nil
}

// LookupByUserIDs returns the records of the given identities that exist.
func (m *Memory) LookupByUserIDs(_ context.Context, userIDs []string) (map[string]registry.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]registry.Record, len(userIDs))
	for _, id := range userIDs {
		if rec, ok := m.users[id]; ok {
			out[id] = cloneRecord(rec)
		}
	}
	return out, nil
}

// UpsertClaim inserts or renames the record keyed by rec.UserID. It returns
// registry.ErrNameConflict when another identity holds the name.
func (m *Memory) UpsertClaim(_ context.Context, rec registry.Record) (registry.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(rec.DisplayName)
	if holder, ok := m.names[key]; ok && holder != rec.UserID {
		return registry.Record{}, registry.ErrNameConflict
	}

	if prev, ok := m.users[rec.UserID]; ok {
		delete(m.names, strings.ToLower(prev.DisplayName))
	}

	rec = cloneRecord(rec)
	m.users[rec.UserID] = rec
	m.names[key] = rec.UserID

	return cloneRecord(rec), nil
}

// Append stores msg and reports it to every feed listener.
func (m *Memory) Append(_ context.Context, msg chat.Message) (chat.Message, error) {
	m.mu.Lock()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = m.now().UTC()
	}
	msg.NameStyle = nil
	m.seq++
	m.messages = append(m.messages, storedMessage{seq: m.seq, msg: msg})
	m.mu.Unlock()

	m.notify(msg)
	return msg, nil
}

// History returns every message ordered by created_at, then insertion order.
func (m *Memory) History(_ context.Context) ([]chat.Message, error) {
	m.mu.RLock()
	rows := make([]storedMessage, len(m.messages))
	copy(rows, m.messages)
	m.mu.RUnlock()

	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].msg.CreatedAt.Equal(rows[j].msg.CreatedAt) {
			return rows[i].msg.CreatedAt.Before(rows[j].msg.CreatedAt)
		}
		return rows[i].seq < rows[j].seq
	})

	out := make([]chat.Message, len(rows))
	for i, row := range rows {
		out[i] = row.msg
	}
	return out, nil
}

// AuthorNameUsed reports whether any message was sent under exactly authorName.
func (m *Memory) AuthorNameUsed(_ context.Context, authorName string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, row := range m.messages {
		if row.msg.AuthorName == authorName {
			return true, nil
		}
	}
	return false, nil
}

// Listen invokes fn for every message appended after the call, until ctx ends.
func (m *Memory) Listen(ctx context.Context, fn func(chat.Message)) error {
	ch := make(chan chat.Message, feedBuffer)
	done := make(chan struct{})

	m.listenersMu.Lock()
	m.listeners[ch] = done
	m.listenersMu.Unlock()

	defer func() {
		close(done)
		m.listenersMu.Lock()
		delete(m.listeners, ch)
		m.listenersMu.Unlock()
	}()

	for {
		select {
		case msg := <-ch:
			fn(msg)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// notify runs outside the data lock so listeners may read the store.
func (m *Memory) notify(msg chat.Message) {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()

	for ch, done := range m.listeners {
		select {
		case ch <- msg:
		case <-done:
		}
	}
}

// RecordVisit appends an entry to the visit log.
func (m *Memory) RecordVisit(_ context.Context, userID, ip string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.visits = append(m.visits, Visit{UserID: userID, IP: ip, CreatedAt: at})
	return nil
}

// Visits returns a copy of the visit log.
func (m *Memory) Visits() []Visit {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Visit, len(m.visits))
	copy(out, m.visits)
	return out
}

// Close is a no-op; it lets Memory stand in wherever a closable store is expected.
func (m *Memory) Close() {}

func cloneRecord(rec registry.Record) registry.Record {
	if rec.NameStyle != nil {
		style := *rec.NameStyle
		rec.NameStyle = &style
	}
	return rec
}

// ListenerCount returns the number of active Listen calls.
func (m *Memory) ListenerCount() int {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()

	return len(m.listeners)
}

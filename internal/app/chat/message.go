/*
Package chat contains the public chat room: the append-only message log service, the hub that
fans new messages out to every live subscriber, and the WebSocket client pumps.

This file defines the message record and the wire events exchanged with viewers.
*/
package chat

import (
	"context"
	"encoding/json"
	"time"

	"blip/internal/app/registry"
)

// MaxContentBytes is the maximum allowed size in bytes of a message text.
const MaxContentBytes = 5000

// Message is one entry of the public chat log. AuthorName is a snapshot taken at send time;
// NameStyle is never stored and is attached only when the message is delivered.
type Message struct {
	ID         string              `json:"id"`
	AuthorName string              `json:"author_name"`
	UserID     string              `json:"user_id"`
	Message    string              `json:"message"`
	CreatedAt  time.Time           `json:"created_at"`
	NameStyle  *registry.NameStyle `json:"name_style,omitempty"`
}

// Log is the narrow view of the public_chat collection. It is insert-only.
type Log interface {
	// Append stores m. A zero CreatedAt is filled by the store.
	Append(ctx context.Context, m Message) (Message, error)

	// History returns every message ordered by created_at, then insertion order.
	History(ctx context.Context) ([]Message, error)

	// AuthorNameUsed reports whether any message was sent under exactly this author name.
	AuthorNameUsed(ctx context.Context, authorName string) (bool, error)
}

// Feed delivers every message appended to the log by any writer.
// Listen blocks, invoking fn in arrival order, until ctx ends or the feed fails.
type Feed interface {
	Listen(ctx context.Context, fn func(Message)) error
}

// StyleSource resolves the current registry records of a set of identities.
type StyleSource interface {
	Snapshot(ctx context.Context, userIDs []string) (map[string]registry.Record, error)
}

// EventType identifies a WebSocket frame.
type EventType string

const (
	// TypeNewMessage carries a Message appended to the log.
	TypeNewMessage EventType = "NEW_MESSAGE"

	// TypeText is sent by a viewer to post a message over the socket.
	TypeText EventType = "TEXT"

	// TypeConfirm acknowledges a TEXT frame that carried a tempId.
	TypeConfirm EventType = "CONFIRM"

	// TypeError reports a failed action to a single viewer.
	TypeError EventType = "ERROR"
)

// Event is the envelope of every WebSocket frame.
type Event struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	TempID  string          `json:"tempId,omitempty"`
}

// TextPayload is the body of a TEXT frame.
type TextPayload struct {
	Content string `json:"content"`
}

// ConfirmPayload is the body of a CONFIRM frame.
type ConfirmPayload struct {
	TempID    string    `json:"tempId"`
	MessageID string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrorPayload is the body of an ERROR frame.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewEvent marshals payload into an Event of type t.
func NewEvent(t EventType, tempID string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: t, Payload: raw, TempID: tempID}, nil
}

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blip/internal/app/chat"
	"blip/internal/app/registry"
)

func TestMemoryNameIndexIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.UpsertClaim(ctx, registry.Record{UserID: "user_1", DisplayName: "Alice"})
	require.NoError(t, err)

	rec, err := m.LookupByName(ctx, "aLiCe")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "user_1", rec.UserID)

	_, err = m.UpsertClaim(ctx, registry.Record{UserID: "user_2", DisplayName: "ALICE"})
	assert.ErrorIs(t, err, registry.ErrNameConflict)

	missing, err := m.LookupByName(ctx, "bob")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryRenameFreesOldName(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.UpsertClaim(ctx, registry.Record{UserID: "user_1", DisplayName: "Alice"})
	require.NoError(t, err)
	_, err = m.UpsertClaim(ctx, registry.Record{UserID: "user_1", DisplayName: "Alicia"})
	require.NoError(t, err)

	old, err := m.LookupByName(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, old)

	_, err = m.UpsertClaim(ctx, registry.Record{UserID: "user_2", DisplayName: "Alice"})
	assert.NoError(t, err)
}

func TestMemoryRecordsAreCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	style := &registry.NameStyle{Type: "solid", Color: "#ff0000"}
	_, err := m.UpsertClaim(ctx, registry.Record{UserID: "user_1", DisplayName: "Alice", NameStyle: style})
	require.NoError(t, err)

	style.Color = "#000000"

	recs, err := m.LookupByUserIDs(ctx, []string{"user_1", "user_missing"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "#ff0000", recs["user_1"].NameStyle.Color)
}

func TestMemoryHistoryOrder(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for _, msg := range []chat.Message{
		{ID: "c", CreatedAt: base.Add(time.Second)},
		{ID: "a", CreatedAt: base},
		{ID: "b", CreatedAt: base},
	} {
		_, err := m.Append(ctx, msg)
		require.NoError(t, err)
	}

	history, err := m.History(ctx)
	require.NoError(t, err)

	ids := make([]string, 0, len(history))
	for _, msg := range history {
		ids = append(ids, msg.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestMemoryAppendStampsAndStripsStyle(t *testing.T) {
	m := NewMemory()
	fixed := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	saved, err := m.Append(context.Background(), chat.Message{
		ID:        "m1",
		NameStyle: &registry.NameStyle{Type: "solid"},
	})
	require.NoError(t, err)

	assert.Equal(t, fixed, saved.CreatedAt)
	assert.Nil(t, saved.NameStyle)
}

func TestMemoryAuthorNameUsedIsExact(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Append(ctx, chat.Message{ID: "m1", AuthorName: "Anonymous_aB3x9Z"})
	require.NoError(t, err)

	used, err := m.AuthorNameUsed(ctx, "Anonymous_aB3x9Z")
	require.NoError(t, err)
	assert.True(t, used)

	used, err = m.AuthorNameUsed(ctx, "anonymous_ab3x9z")
	require.NoError(t, err)
	assert.False(t, used)
}

func TestMemoryListenDeliversEveryAppend(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewMemory()

	got := make(chan chat.Message, 8)
	done := make(chan error, 1)
	go func() {
		done <- m.Listen(ctx, func(msg chat.Message) { got <- msg })
	}()

	require.Eventually(t, func() bool { return m.ListenerCount() == 1 }, time.Second, 5*time.Millisecond)

	for _, id := range []string{"m1", "m2", "m3"} {
		_, err := m.Append(ctx, chat.Message{ID: id})
		require.NoError(t, err)
	}

	for _, want := range []string{"m1", "m2", "m3"} {
		select {
		case msg := <-got:
			assert.Equal(t, want, msg.ID)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, 0, m.ListenerCount())
}

func TestMemoryRecordVisit(t *testing.T) {
	m := NewMemory()
	at := time.Now().UTC()

	require.NoError(t, m.RecordVisit(context.Background(), "user_1", "203.0.113.0", at))

	visits := m.Visits()
	require.Len(t, visits, 1)
	assert.Equal(t, Visit{UserID: "user_1", IP: "203.0.113.0", CreatedAt: at}, visits[0])
}

package chat_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blip/internal/app/chat"
	"blip/internal/app/registry"
	"blip/internal/app/store"
	"blip/internal/pkg/errs"
)

var errBoom = errors.New("boom")

type failingLog struct {
	*store.Memory
}

func (failingLog) Append(context.Context, chat.Message) (chat.Message, error) {
	return chat.Message{}, errBoom
}

type failingStyles struct{}

func (failingStyles) Snapshot(context.Context, []string) (map[string]registry.Record, error) {
	return nil, errBoom
}

type fixture struct {
	mem     *store.Memory
	reg     *registry.Registry
	service *chat.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mem := store.NewMemory()
	reg := registry.New(mem)
	service := chat.NewService(mem, mem, reg, nil)

	service.Start(context.Background())
	t.Cleanup(service.Shutdown)

	require.Eventually(t, func() bool { return mem.ListenerCount() == 1 }, time.Second, 5*time.Millisecond)

	return &fixture{mem: mem, reg: reg, service: service}
}

func next(t *testing.T, sub *chat.Subscription) chat.Message {
	t.Helper()

	select {
	case m, ok := <-sub.Messages():
		require.True(t, ok, "subscription closed unexpectedly")
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for live message")
		return chat.Message{}
	}
}

func TestSendReachesEverySubscriberIncludingAuthor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	author := f.service.Subscribe()
	other := f.service.Subscribe()
	defer author.Close()
	defer other.Close()

	saved, err := f.service.Send(ctx, chat.SendInput{UserID: "user_a", AuthorName: "Alice", Text: "  hello there  "})
	require.NoError(t, err)
	assert.Equal(t, "hello there", saved.Message)
	assert.NotEmpty(t, saved.ID)
	assert.False(t, saved.CreatedAt.IsZero())

	for _, sub := range []*chat.Subscription{author, other} {
		got := next(t, sub)
		assert.Equal(t, saved.ID, got.ID)
		assert.Equal(t, "Alice", got.AuthorName)
	}
}

func TestSendStoresCensoredText(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	saved, err := f.service.Send(ctx, chat.SendInput{UserID: "user_a", AuthorName: "Alice", Text: "what the shit"})
	require.NoError(t, err)
	assert.Equal(t, "what the s***", saved.Message)

	history, err := f.service.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "what the s***", history[0].Message)
}

func TestSendRejectsBlockedPhrase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, text := range []string{"fuck you", "SHIT   you", "f*ck you buddy"} {
		_, err := f.service.Send(ctx, chat.SendInput{UserID: "user_a", AuthorName: "Alice", Text: text})
		if text == "f*ck you buddy" {
			assert.NoError(t, err, text)
			continue
		}
		assert.True(t, errs.HasCode(err, errs.ErrMessageBlocked), text)
	}

	history, err := f.service.History(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestSendValidatesInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   chat.SendInput
		code int
	}{
		{"empty text", chat.SendInput{UserID: "user_a", AuthorName: "Alice", Text: " \n\t "}, errs.ErrMessageEmpty},
		{"too long", chat.SendInput{UserID: "user_a", AuthorName: "Alice", Text: strings.Repeat("a", chat.MaxContentBytes+1)}, errs.ErrMessageContentTooLong},
		{"missing user", chat.SendInput{AuthorName: "Alice", Text: "hi"}, errs.ErrInvalidParams},
		{"bad user id", chat.SendInput{UserID: "user a", AuthorName: "Alice", Text: "hi"}, errs.ErrInvalidParams},
		{"missing author", chat.SendInput{UserID: "user_a", AuthorName: "  ", Text: "hi"}, errs.ErrInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.Send(ctx, tt.in)
			assert.True(t, errs.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestSendReportsStorageFailure(t *testing.T) {
	mem := store.NewMemory()
	service := chat.NewService(failingLog{mem}, mem, registry.New(mem), nil)

	_, err := service.Send(context.Background(), chat.SendInput{UserID: "user_a", AuthorName: "Alice", Text: "hello"})
	assert.True(t, errs.HasCode(err, errs.ErrStorageFailed))
}

func TestStyleFollowsCurrentName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	style := &registry.NameStyle{Type: "solid", Color: "#ff00aa"}
	_, err := f.reg.Claim(ctx, "Alice", "user_a", style)
	require.NoError(t, err)

	sub := f.service.Subscribe()
	defer sub.Close()

	_, err = f.service.Send(ctx, chat.SendInput{UserID: "user_a", AuthorName: "Alice", Text: "first"})
	require.NoError(t, err)

	live := next(t, sub)
	require.NotNil(t, live.NameStyle)
	assert.Equal(t, "#ff00aa", live.NameStyle.Color)

	_, err = f.reg.Claim(ctx, "Alicia", "user_a", nil)
	require.NoError(t, err)

	_, err = f.service.Send(ctx, chat.SendInput{UserID: "user_a", AuthorName: "alicia", Text: "second"})
	require.NoError(t, err)

	history, err := f.service.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 2)

	assert.Nil(t, history[0].NameStyle, "message sent under the old name loses the style")
	require.NotNil(t, history[1].NameStyle)
	assert.Equal(t, "#ff00aa", history[1].NameStyle.Color)
}

func TestHistoryWithoutRegistryStaysUnstyled(t *testing.T) {
	mem := store.NewMemory()
	_, err := mem.UpsertClaim(context.Background(), registry.Record{
		UserID:      "user_a",
		DisplayName: "Alice",
		NameStyle:   &registry.NameStyle{Type: "solid", Color: "#fff"},
	})
	require.NoError(t, err)

	service := chat.NewService(mem, mem, failingStyles{}, nil)

	_, err = service.Send(context.Background(), chat.SendInput{UserID: "user_a", AuthorName: "Alice", Text: "hi"})
	require.NoError(t, err)

	history, err := service.History(context.Background())
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Nil(t, history[0].NameStyle)
}

func TestAuthorNameUsed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Send(ctx, chat.SendInput{UserID: "user_a", AuthorName: "Anonymous_Zx81aQ", Text: "hi"})
	require.NoError(t, err)

	used, err := f.service.AuthorNameUsed(ctx, "Anonymous_Zx81aQ")
	require.NoError(t, err)
	assert.True(t, used)

	used, err = f.service.AuthorNameUsed(ctx, "Anonymous_000000")
	require.NoError(t, err)
	assert.False(t, used)
}

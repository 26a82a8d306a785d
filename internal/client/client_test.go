package client

import (
	"context"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blip/internal/app/chat"
	"blip/internal/app/identity"
	"blip/internal/app/registry"
	"blip/internal/app/store"
	"blip/internal/configs"
	"blip/internal/handler"
	"blip/internal/pkg/errs"
	"blip/internal/pkg/logx"
)

func TestMain(m *testing.M) {
	logx.InitWithWriter(os.Stderr, zerolog.Disabled)
	os.Exit(m.Run())
}

type server struct {
	mem *store.Memory
	api *API
}

func startServer(t *testing.T) *server {
	t.Helper()

	mem := store.NewMemory()
	reg := registry.New(mem)
	service := chat.NewService(mem, mem, reg, nil)
	service.Start(context.Background())

	srv := httptest.NewServer(handler.Router(&handler.AppDeps{
		Config:   &configs.AppConfig{Environment: configs.EnvDevelopment},
		Chat:     service,
		Registry: reg,
		Visits:   mem,
	}))

	t.Cleanup(func() {
		service.Shutdown()
		srv.Close()
	})

	require.Eventually(t, func() bool { return mem.ListenerCount() == 1 }, time.Second, 5*time.Millisecond)

	return &server{mem: mem, api: NewAPI(srv.URL, 5*time.Second)}
}

func waitUpdate(t *testing.T, s *Session) chat.Message {
	t.Helper()

	select {
	case m, ok := <-s.Updates():
		require.True(t, ok, "feed ended unexpectedly")
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for live message")
		return chat.Message{}
	}
}

func assertNoUpdate(t *testing.T, s *Session) {
	t.Helper()

	select {
	case m := <-s.Updates():
		t.Fatalf("unexpected live message %q", m.ID)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestAPIRoundTrip(t *testing.T) {
	s := startServer(t)
	ctx := context.Background()

	sent, err := s.api.Send(ctx, "user_a", "Alice", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", sent.Message)

	history, err := s.api.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, sent.ID, history[0].ID)

	used, err := s.api.AuthorNameUsed(ctx, "Alice")
	require.NoError(t, err)
	assert.True(t, used)

	logged, err := s.api.LogVisit(ctx, "user_a")
	require.NoError(t, err)
	assert.False(t, logged, "loopback visits are not recorded")
}

func TestAPIMapsErrorCodes(t *testing.T) {
	s := startServer(t)
	ctx := context.Background()

	_, err := s.api.ClaimName(ctx, "Alice", "user_a", nil)
	require.NoError(t, err)

	_, err = s.api.ClaimName(ctx, "alice", "user_b", nil)
	assert.True(t, errs.HasCode(err, errs.ErrNameTaken))
	assert.ErrorIs(t, err, errs.NewError(errs.ErrNameTaken))

	_, err = s.api.LookupName(ctx, "user_nobody")
	assert.True(t, errs.HasCode(err, errs.ErrNameNotFound))

	_, err = s.api.Send(ctx, "user_a", "Alice", "shit you")
	assert.True(t, errs.HasCode(err, errs.ErrMessageBlocked))
}

func TestAPICanceledIsStale(t *testing.T) {
	s := startServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.api.History(ctx)
	assert.True(t, IsStale(err))
}

func TestViewOrdersAndDeduplicates(t *testing.T) {
	v := NewView()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, m := range []chat.Message{
		{ID: "c", CreatedAt: base.Add(2 * time.Second)},
		{ID: "a", CreatedAt: base},
		{ID: "b1", CreatedAt: base.Add(time.Second)},
		{ID: "b2", CreatedAt: base.Add(time.Second)},
	} {
		ok, err := v.Apply(m)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := v.Apply(chat.Message{ID: "a", CreatedAt: base})
	require.NoError(t, err)
	assert.False(t, ok)

	added, err := v.ApplyAll([]chat.Message{{ID: "b1"}, {ID: "d", CreatedAt: base.Add(3 * time.Second)}})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	ids := []string{}
	for _, m := range v.Messages() {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"a", "b1", "b2", "c", "d"}, ids)

	v.Close()
	_, err = v.Apply(chat.Message{ID: "late"})
	assert.True(t, IsStale(err))
	assert.Equal(t, 5, v.Len())
}

func TestFallbackViewerMessageReachesSubscriber(t *testing.T) {
	s := startServer(t)
	ctx := context.Background()

	viewerA := NewProfile(identity.NewMemoryKV(), s.api)
	viewerB := NewProfile(identity.NewMemoryKV(), s.api)

	sessionB, snapshot, err := OpenSession(ctx, s.api, viewerB.Identity().ID, "")
	require.NoError(t, err)
	defer sessionB.Close()
	assert.Empty(t, snapshot)

	authorName, err := viewerA.AuthorName(ctx)
	require.NoError(t, err)
	assert.Contains(t, authorName, "Anonymous_")

	sent, err := NewComposer(nil, s.api).Submit(ctx, viewerA.Identity().ID, authorName, "hi")
	require.NoError(t, err)

	got := waitUpdate(t, sessionB)
	assert.Equal(t, sent.ID, got.ID)
	assert.Equal(t, authorName, got.AuthorName)
	assert.Equal(t, "hi", got.Message)

	assertNoUpdate(t, sessionB)
	assert.Equal(t, 1, sessionB.View().Len())
}

func TestSessionSeamHasNoDuplicates(t *testing.T) {
	s := startServer(t)
	ctx := context.Background()

	before, err := s.api.Send(ctx, "user_a", "Alice", "before")
	require.NoError(t, err)

	session, snapshot, err := OpenSession(ctx, s.api, "user_b", "")
	require.NoError(t, err)
	defer session.Close()

	require.Len(t, snapshot, 1)
	assert.Equal(t, before.ID, snapshot[0].ID)

	after, err := s.api.Send(ctx, "user_a", "Alice", "after")
	require.NoError(t, err)

	assert.Equal(t, after.ID, waitUpdate(t, session).ID)
	assertNoUpdate(t, session)

	ids := []string{}
	for _, m := range session.View().Messages() {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{before.ID, after.ID}, ids)
}

func TestClosedSessionRejectsLateResults(t *testing.T) {
	s := startServer(t)

	session, _, err := OpenSession(context.Background(), s.api, "user_b", "")
	require.NoError(t, err)

	session.Close()
	session.Close()

	assert.NoError(t, session.Err())
	_, err = session.View().Apply(chat.Message{ID: "late"})
	assert.True(t, IsStale(err))

	_, open := <-session.Updates()
	assert.False(t, open)
}

func TestRenameDropsStyleFromOldMessages(t *testing.T) {
	s := startServer(t)
	ctx := context.Background()

	bob := NewProfile(identity.NewMemoryKV(), s.api)

	_, err := bob.SetName(ctx, "Bob", &registry.NameStyle{Type: "solid", Color: "#00ff00"})
	require.NoError(t, err)

	name, err := bob.AuthorName(ctx)
	require.NoError(t, err)
	require.Equal(t, "Bob", name)

	_, err = s.api.Send(ctx, bob.Identity().ID, name, "old message")
	require.NoError(t, err)

	history, err := s.api.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.NotNil(t, history[0].NameStyle)

	_, err = bob.SetName(ctx, "Bobby", nil)
	require.NoError(t, err)

	history, err = s.api.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Bob", history[0].AuthorName)
	assert.Nil(t, history[0].NameStyle)
}

func TestProfileNameChecks(t *testing.T) {
	s := startServer(t)
	ctx := context.Background()

	alice := NewProfile(identity.NewMemoryKV(), s.api)
	other := NewProfile(identity.NewMemoryKV(), s.api)

	_, err := alice.SetName(ctx, "Alice", nil)
	require.NoError(t, err)

	assert.Equal(t, registry.Result{Valid: true, Message: "This is already your own reserved name."}, alice.CheckName(ctx, "alice"))
	assert.Equal(t, registry.Result{Valid: false, Message: "This name is already taken."}, other.CheckName(ctx, "ALICE"))

	_, err = other.SetName(ctx, "ALICE", nil)
	assert.True(t, errs.HasCode(err, errs.ErrNameTaken))

	_, err = other.SetName(ctx, "   ", nil)
	assert.True(t, errs.HasCode(err, errs.ErrEmptyDisplayName))
}

func TestProfileFailsClosedWhenServerIsDown(t *testing.T) {
	srv := httptest.NewServer(nil)
	srv.Close()

	profile := NewProfile(identity.NewMemoryKV(), NewAPI(srv.URL, time.Second))

	got := profile.CheckName(context.Background(), "Alice")
	assert.Equal(t, registry.Result{Valid: false, Message: "Error checking display name."}, got)

	// the fallback name is still produced without the server.
	name, err := profile.AuthorName(context.Background())
	require.NoError(t, err)
	assert.Contains(t, name, "Anonymous_")
}

func TestProfileResetChangesIdentity(t *testing.T) {
	s := startServer(t)
	ctx := context.Background()

	kv := identity.NewMemoryKV()
	profile := NewProfile(kv, s.api)

	id := profile.Identity().ID
	fallback, err := profile.AuthorName(ctx)
	require.NoError(t, err)

	again, err := NewProfile(kv, s.api).AuthorName(ctx)
	require.NoError(t, err)
	assert.Equal(t, fallback, again)

	require.NoError(t, profile.Reset())
	assert.NotEqual(t, id, profile.Identity().ID)
}

// recordingSender counts submissions.
type recordingSender struct {
	calls int
}

func (r *recordingSender) Send(_ context.Context, _, _, text string) (chat.Message, error) {
	r.calls++
	return chat.Message{Message: text}, nil
}

func TestComposerGatesSubmission(t *testing.T) {
	sender := &recordingSender{}
	c := NewComposer(nil, sender)

	preview := c.Preview("well shit you")
	assert.False(t, preview.Allowed)
	assert.Equal(t, "well s*** you", preview.Output)

	_, err := c.Submit(context.Background(), "user_a", "Alice", "well shit you")
	assert.True(t, errs.HasCode(err, errs.ErrMessageBlocked))

	_, err = c.Submit(context.Background(), "user_a", "Alice", "   ")
	assert.True(t, errs.HasCode(err, errs.ErrMessageEmpty))
	assert.Equal(t, 0, sender.calls)

	sent, err := c.Submit(context.Background(), "user_a", "Alice", " what the shit ")
	require.NoError(t, err)
	assert.Equal(t, "what the shit", sent.Message, "raw text goes to the server, which censors it")
	assert.Equal(t, 1, sender.calls)
}

func TestFeedURL(t *testing.T) {
	got, err := FeedURL("https://chat.example/", "user_a", "Al ice")
	require.NoError(t, err)
	assert.Equal(t, "wss://chat.example/ws?nn=Al+ice&uid=user_a", got)

	got, err = FeedURL("http://localhost:8080", "user_a", "")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/ws?uid=user_a", got)

	_, err = FeedURL("ftp://x", "user_a", "")
	assert.Error(t, err)
}

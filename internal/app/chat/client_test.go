package chat

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pumpServer serves one WebSocket per request with a Client over a fresh subscription and
// hands the subscription to the test.
func pumpServer(t *testing.T, h *Hub) (string, <-chan *Subscription) {
	t.Helper()

	subs := make(chan *Subscription, 1)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub := h.Subscribe()
		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			sub.Close()
			return
		}

		client := NewClient(nil, conn, sub, "user_a", "")
		go client.WritePump()
		subs <- sub
		client.ReadPump()
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http"), subs
}

func readCloseCode(t *testing.T, conn *websocket.Conn) int {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		var closeErr *websocket.CloseError
		require.ErrorAs(t, err, &closeErr)
		return closeErr.Code
	}
}

func TestWritePumpAsksDroppedViewerToResync(t *testing.T) {
	h := startHub(t)
	url, subs := pumpServer(t, h)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	sub := <-subs
	sub.dropped.Store(true)
	sub.Close()

	assert.Equal(t, websocket.CloseTryAgainLater, readCloseCode(t, conn))
}

func TestWritePumpClosesNormallyOnHubStop(t *testing.T) {
	h := NewHub()
	go h.Run()
	url, subs := pumpServer(t, h)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	<-subs
	h.Stop()

	assert.Equal(t, websocket.CloseGoingAway, readCloseCode(t, conn))
}

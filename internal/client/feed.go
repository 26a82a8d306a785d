package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"blip/internal/app/chat"
	"blip/internal/pkg/logx"
)

const (
	// pongWait matches the server's ping period with headroom.
	pongWait = 75 * time.Second

	handshakeTimeout = 10 * time.Second
)

// ErrResync is returned by Run when the server dropped the subscription for lagging behind.
// Messages may have been missed; the caller reconnects and backfills.
var ErrResync = errors.New("feed: server requested resync")

// Feed is a live subscription to the server's NEW_MESSAGE stream.
type Feed struct {
	conn *websocket.Conn

	closing   atomic.Bool
	closeOnce sync.Once
	logger    zerolog.Logger
}

// FeedURL converts an http(s) server address into the WebSocket feed address.
func FeedURL(baseURL, userID, authorName string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}

	u.Path += "/ws"
	q := url.Values{"uid": {userID}}
	if authorName != "" {
		q.Set("nn", authorName)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// DialFeed subscribes to the live feed. When it returns, every message appended afterwards
// will be delivered.
func DialFeed(ctx context.Context, baseURL, userID, authorName string) (*Feed, error) {
	target, err := FeedURL(baseURL, userID, authorName)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
	}

	conn, res, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		if res != nil {
			return nil, fmt.Errorf("dial feed: %w (HTTP %d)", err, res.StatusCode)
		}
		return nil, fmt.Errorf("dial feed: %w", err)
	}

	return &Feed{conn: conn, logger: logx.Component("Feed")}, nil
}

// Run reads frames until the connection ends, calling onMessage for NEW_MESSAGE and onError
// (when non-nil) for ERROR frames. It returns nil after Close or a normal server close, and
// ErrResync when the server dropped this subscriber.
func (f *Feed) Run(onMessage func(chat.Message), onError func(chat.ErrorPayload)) error {
	if err := f.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return err
	}
	f.conn.SetPingHandler(func(data string) error {
		if err := f.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			return err
		}
		return f.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	for {
		var ev chat.Event
		if err := f.conn.ReadJSON(&ev); err != nil {
			if websocket.IsCloseError(err, websocket.CloseTryAgainLater) {
				return ErrResync
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || f.closing.Load() {
				return nil
			}
			return fmt.Errorf("read feed: %w", err)
		}

		switch ev.Type {
		case chat.TypeNewMessage:
			var m chat.Message
			if err := json.Unmarshal(ev.Payload, &m); err != nil {
				f.logger.Warn().Err(err).Msg("Dropping undecodable message frame.")
				continue
			}
			onMessage(m)

		case chat.TypeError:
			if onError == nil {
				continue
			}
			var p chat.ErrorPayload
			if err := json.Unmarshal(ev.Payload, &p); err == nil {
				onError(p)
			}

		default:
			f.logger.Debug().Str("msg_type", string(ev.Type)).Msg("Ignoring frame.")
		}
	}
}

// Close sends a close frame and releases the connection. It is safe to call more than once.
func (f *Feed) Close() error {
	var err error
	f.closeOnce.Do(func() {
		f.closing.Store(true)
		_ = f.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = f.conn.Close()
	})
	return err
}

/*
Package chat contains the public chat room: the append-only message log service, the hub that
fans new messages out to every live subscriber, and the WebSocket client pumps.

This file defines the Client struct, representing one viewer's WebSocket connection. It owns a
hub subscription for the NEW_MESSAGE stream and accepts TEXT frames for posting.
*/
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"blip/internal/pkg/errs"
	"blip/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the client.
	maxMessageSize = 8192

	// sendTimeout bounds one TEXT post, moderation and storage included.
	sendTimeout = 10 * time.Second
)

// Client represents an active WebSocket connection of one viewer.
type Client struct {
	service *Service
	conn    *websocket.Conn
	sub     *Subscription

	userID     string
	authorName string

	// control frames (CONFIRM, ERROR) addressed to this viewer only.
	send chan []byte

	logger zerolog.Logger
}

// NewClient returns a Client for conn that owns sub. authorName is the name used for TEXT
// frames; it may be empty for a read-only viewer.
func NewClient(service *Service, conn *websocket.Conn, sub *Subscription, userID, authorName string) *Client {
	return &Client{
		service:    service,
		conn:       conn,
		sub:        sub,
		userID:     userID,
		authorName: authorName,
		send:       make(chan []byte, 64),
		logger: logx.Logger().With().
			Str("client_id", userID).
			Uint64("subscription_id", sub.ID()).
			Logger(),
	}
}

// ReadPump handles reading frames from the WebSocket connection.
// It handles heartbeats (Pong), frame parsing, and performs cleanup upon connection closure.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			break
		}

		c.processInboundFrame(frame)
	}
}

// cleanupOnDisconnect releases the subscription and closes the connection.
func (c *Client) cleanupOnDisconnect() {
	c.logger.Info().Msg("Client connection cleanup starting.")

	c.sub.Close()

	if err := c.conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Client connection close error")
	}
}

// processInboundFrame handles raw frames received from the client.
func (c *Client) processInboundFrame(frame []byte) {
	var inbound Event
	if err := json.Unmarshal(frame, &inbound); err != nil {
		c.logger.Warn().Err(err).Int("frame_bytes", len(frame)).Msg("Client sent invalid JSON")
		c.SendError(errs.NewError(errs.ErrInvalidJSONFormat), "")
		return
	}

	switch inbound.Type {
	case TypeText:
		c.handleText(inbound.Payload, inbound.TempID)

	default:
		c.logger.Warn().Str("msg_type", string(inbound.Type)).Msg("Client sent unsupported message type")
		c.SendError(errs.NewError(errs.ErrInvalidParams), inbound.TempID)
	}
}

// handleText posts a TEXT frame through the service. The stored message reaches this viewer
// like everyone else, through the hub; the sender additionally gets a CONFIRM.
func (c *Client) handleText(payload json.RawMessage, tempID string) {
	var text TextPayload
	if err := json.Unmarshal(payload, &text); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid TEXT payload")
		c.SendError(errs.NewError(errs.ErrInvalidParams), tempID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	saved, err := c.service.Send(ctx, SendInput{
		UserID:     c.userID,
		AuthorName: c.authorName,
		Text:       text.Content,
	})
	if err != nil {
		c.SendError(err, tempID)
		return
	}

	c.sendConfirmation(tempID, saved)
}

// WritePump writes hub deliveries and control frames to the WebSocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case message, ok := <-c.sub.Messages():
			if !ok {
				if c.sub.Dropped() {
					c.writeClose(websocket.CloseTryAgainLater, "subscriber lagged, resync")
				} else {
					c.writeClose(websocket.CloseGoingAway, "feed closed")
				}
				return
			}

			if !c.writeEvent(TypeNewMessage, message) {
				return
			}

		case frame := <-c.send:
			if !c.writeFrame(frame) {
				return
			}

		case <-ticker.C:
			if !c.writePingMessage() {
				return
			}
		}
	}
}

func (c *Client) writeEvent(t EventType, payload any) bool {
	event, err := NewEvent(t, "", payload)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to build event")
		return true
	}

	frame, err := json.Marshal(event)
	if err != nil {
		c.logger.Error().Err(err).Msg("Error marshaling event for client")
		return true
	}

	return c.writeFrame(frame)
}

// writeFrame writes one text frame. Returns false if the WritePump loop should terminate.
func (c *Client) writeFrame(frame []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.logger.Error().Err(err).Msg("Error writing message")
		return false
	}

	return true
}

// writeClose sends a close frame. CloseTryAgainLater tells the viewer it missed messages and
// must reconnect and backfill.
func (c *Client) writeClose(code int, text string) {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return
	}

	if err := c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, text)); err != nil {
		c.logger.Debug().Err(err).Msg("Error writing close message")
	}
}

// writePingMessage sends a periodic WebSocket Ping message to maintain the connection heartbeat.
// Returns false if the WritePump loop should terminate due to write failure.
func (c *Client) writePingMessage() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Error().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}

// queue marshals event and attempts to put it on the control channel.
func (c *Client) queue(event Event) error {
	frame, err := json.Marshal(event)
	if err != nil {
		c.logger.Error().Err(err).Msg("Error marshaling data for client")
		return err
	}

	select {
	case c.send <- frame:
		return nil
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Client send channel full, dropping message")
		return fmt.Errorf("client send queue full")
	}
}

// SendError queues an ERROR frame for this viewer.
func (c *Client) SendError(err error, tempID string) {
	payload := ErrorPayload{Code: errs.ErrUnknown, Message: errs.NewError(errs.ErrUnknown).Message}

	var customErr *errs.CustomError
	if errors.As(err, &customErr) {
		payload = ErrorPayload{Code: customErr.Code, Message: customErr.Message}
	} else {
		c.logger.Error().Err(err).Msg("Unexpected error while handling client frame")
	}

	event, buildErr := NewEvent(TypeError, tempID, payload)
	if buildErr != nil {
		c.logger.Error().Err(buildErr).Msg("Failed to build error frame")
		return
	}

	if err := c.queue(event); err != nil {
		c.logger.Error().Err(err).Msg("Failed to queue error message")
	}
}

// sendConfirmation queues a CONFIRM frame when the TEXT frame carried a tempId.
func (c *Client) sendConfirmation(tempID string, saved Message) {
	if tempID == "" {
		return
	}

	event, err := NewEvent(TypeConfirm, tempID, ConfirmPayload{
		TempID:    tempID,
		MessageID: saved.ID,
		CreatedAt: saved.CreatedAt,
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to build ACK message in sendConfirmation")
		return
	}

	if err := c.queue(event); err != nil {
		c.logger.Error().Err(err).Msg("Failed to queue ACK message")
	}
}

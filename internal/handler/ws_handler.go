/*
Package handler provides the HTTP handler function for WebSocket connection upgrading and initialization.

This file contains the HandleWebSocket function, which validates the viewer's query parameters,
upgrades the HTTP connection to WebSocket, and starts the client pumps on the live feed.
*/
package handler

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"blip/internal/app/chat"
	"blip/internal/pkg/errs"
	"blip/internal/pkg/logx"
	"blip/internal/pkg/randx"
	"blip/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
// uid identifies the viewer; nn is the author name used for TEXT frames and may be empty
// for a read-only viewer.
func HandleWebSocket(deps *AppDeps, upgrader websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		userID := query.Get("uid")
		nickName := strings.TrimSpace(query.Get("nn"))

		if !randx.IsAcceptableIdentityID(userID) {
			logx.Warn("WebSocket request rejected: Missing or invalid uid query parameter")
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		// subscribed before the handshake completes, so nothing appended after it is missed.
		sub := deps.Chat.Subscribe()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			sub.Close()
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		client := chat.NewClient(deps.Chat, conn, sub, userID, nickName)

		go client.WritePump()

		logx.Info("WebSocket connection established and client subscribed", "client_id", userID)

		client.ReadPump()
	}
}

/*
Package handler provides HTTP handler functions for the public chat log.
*/
package handler

import (
	"net/http"
	"strings"

	"blip/internal/app/chat"
	"blip/internal/pkg/errs"
	"blip/internal/pkg/req"
	"blip/internal/pkg/resp"
)

// SendMessageInput is the body of POST /api/chat/messages.
type SendMessageInput struct {
	UserID     string `json:"userId"`
	AuthorName string `json:"authorName"`
	Message    string `json:"message"`
}

// HistoryResponse is the data of GET /api/chat/messages.
type HistoryResponse struct {
	Messages []chat.Message `json:"messages"`
}

// AuthorUsageResponse is the data of GET /api/chat/authors/used.
type AuthorUsageResponse struct {
	Used bool `json:"used"`
}

// HandleHistory returns the whole log, oldest first, with current name styles.
func HandleHistory(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		messages, err := deps.Chat.History(r.Context())
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, HistoryResponse{Messages: messages})
	}
}

// HandleSendMessage appends a message. Subscribers receive it through the live feed.
func HandleSendMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input SendMessageInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		saved, err := deps.Chat.Send(r.Context(), chat.SendInput{
			UserID:     input.UserID,
			AuthorName: input.AuthorName,
			Text:       input.Message,
		})
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		resp.RespondCreated(w, r, saved)
	}
}

// HandleAuthorNameUsed reports whether any message was sent under the exact name.
func HandleAuthorNameUsed(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimSpace(r.URL.Query().Get("name"))
		if name == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		used, err := deps.Chat.AuthorNameUsed(r.Context(), name)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, AuthorUsageResponse{Used: used})
	}
}

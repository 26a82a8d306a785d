/*
Package handler provides the HTTP handlers and routing setup for the blip chat server.

This file defines the main Router, applying middleware like request ids, logging, CORS and panic
recovery before delegating requests to the API and WebSocket handlers.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"blip/internal/pkg/logx"
	"blip/internal/pkg/resp"
)

// Router sets up the main HTTP routing table (chi.Router) for the application.
func Router(deps *AppDeps) http.Handler {
	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	wsUpgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.IsDevelopment() {
				return true
			}

			origin := r.Header.Get("Origin")
			// non-browser viewers (the blip CLI) send no Origin header.
			if origin == "" {
				return true
			}
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: false,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		data := map[string]any{
			"status":      "ok",
			"service":     "blip",
			"subscribers": deps.Chat.Hub().Count(),
		}
		resp.RespondSuccess(w, r, data)
	})

	r.Route("/api", func(api chi.Router) {
		api.Route("/chat", func(chatRoutes chi.Router) {
			chatRoutes.Get("/messages", HandleHistory(deps))
			chatRoutes.Post("/messages", HandleSendMessage(deps))
			chatRoutes.Get("/authors/used", HandleAuthorNameUsed(deps))
		})

		api.Route("/names", func(names chi.Router) {
			names.Post("/validate", HandleValidateName(deps))
			names.Post("/claim", HandleClaimName(deps))
			names.Get("/{userId}", HandleGetName(deps))
		})

		api.Post("/logUser", HandleLogUser(deps))
	})

	r.Get("/ws", HandleWebSocket(deps, wsUpgrader))

	return r
}

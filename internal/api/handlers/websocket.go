package handlers

import (
	"log/slog"
	"net/http"

	"github.com/dom/chat-relay/internal/auth"
	"github.com/dom/chat-relay/internal/websocket"
	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
)

type WebSocketHandler struct {
	hub      *websocket.Hub
	gate     *auth.SessionGate
	upgrader ws.Upgrader
}

// NewWebSocketHandler accepts upgrades from the given origins. An empty list
// allows any origin.
func NewWebSocketHandler(hub *websocket.Hub, gate *auth.SessionGate, allowedOrigins []string) *WebSocketHandler {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}

	return &WebSocketHandler{
		hub:  hub,
		gate: gate,
		upgrader: ws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(origins) == 0 || origins["*"] || origins[origin]
			},
		},
	}
}

func (h *WebSocketHandler) Handle(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.resolve(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "user_id", userID, "error", err)
		return
	}

	client := websocket.NewClient(h.hub, conn, userID)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

// Browsers cannot set headers on an upgrade request, so a token query
// parameter is accepted alongside the header and cookie.
func (h *WebSocketHandler) resolve(r *http.Request) (uuid.UUID, bool) {
	if userID, ok := h.gate.Resolve(r); ok {
		return userID, true
	}
	return h.gate.ResolveToken(r.URL.Query().Get("token"))
}

package handlers

import (
	"net/http"

	"messenger-backend/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler tracks presence over a websocket connection: connecting
// marks the user online, incoming frames refresh the heartbeat, and closing
// the connection marks the user offline.
type WebSocketHandler struct {
	presence    *services.PresenceTracker
	userService *services.UserService
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(presence *services.PresenceTracker, userService *services.UserService) *WebSocketHandler {
	return &WebSocketHandler{
		presence:    presence,
		userService: userService,
	}
}

// HandleWebSocket handles GET /ws?token=...
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, "token required", http.StatusUnauthorized)
		return
	}

	userID, err := h.userService.ValidateJWT(token)
	if err != nil {
		respondError(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	ctx := r.Context()

	if err := h.presence.MarkOnline(ctx, userID); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Failed to mark user online")
	}
	defer func() {
		if err := h.presence.MarkOffline(ctx, userID); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("Failed to mark user offline")
		}
	}()

	log.Info().Str("user_id", userID).Msg("Presence connection established")

	// Any frame from the client counts as a heartbeat; the periodic tracker
	// loop covers quiet connections.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("user_id", userID).Msg("WebSocket error")
			}
			break
		}
		h.presence.Heartbeat(ctx, userID)
	}
}

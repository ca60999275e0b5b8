package handlers

import (
	"net/http"

	"messenger-backend/internal/middleware"
	"messenger-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// CallHandler handles call-log HTTP requests
type CallHandler struct {
	callLog *services.CallLog
}

// NewCallHandler creates a new call handler
func NewCallHandler(callLog *services.CallLog) *CallHandler {
	return &CallHandler{
		callLog: callLog,
	}
}

// List handles GET /api/v1/calls
func (h *CallHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	entries, err := h.callLog.ListForUser(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to list call log")
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, entries)
}

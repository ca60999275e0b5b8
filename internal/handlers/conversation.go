package handlers

import (
	"encoding/json"
	"net/http"

	"messenger-backend/internal/middleware"
	"messenger-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// ConversationHandler handles conversation-related HTTP requests
type ConversationHandler struct {
	directory *services.Directory
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(directory *services.Directory) *ConversationHandler {
	return &ConversationHandler{
		directory: directory,
	}
}

// CreateIndividualRequest is the body of POST /api/v1/conversations/individual
type CreateIndividualRequest struct {
	UserID string `json:"user_id"`
}

// CreateIndividual handles POST /api/v1/conversations/individual.
// It resolves an existing one-to-one conversation or creates a new one.
func (h *ConversationHandler) CreateIndividual(w http.ResponseWriter, r *http.Request) {
	requesterID := middleware.GetUserID(r.Context())

	var req CreateIndividualRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	conv, err := h.directory.ResolveOrCreateIndividual(r.Context(), requesterID, req.UserID)
	if err != nil {
		log.Error().Err(err).Str("user_id", requesterID).Msg("Failed to resolve individual conversation")
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, conv)
}

// CreateGroupRequest is the body of POST /api/v1/conversations/group
type CreateGroupRequest struct {
	Name      string   `json:"name"`
	MemberIDs []string `json:"member_ids"`
}

// CreateGroup handles POST /api/v1/conversations/group
func (h *ConversationHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	creatorID := middleware.GetUserID(r.Context())

	var req CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	conv, err := h.directory.CreateGroup(r.Context(), creatorID, req.Name, req.MemberIDs)
	if err != nil {
		log.Error().Err(err).Str("user_id", creatorID).Msg("Failed to create group")
		respondEngineError(w, err)
		return
	}

	log.Info().Str("conversation_id", conv.ID).Str("user_id", creatorID).Msg("Group created")

	respondJSON(w, http.StatusOK, conv)
}

// List handles GET /api/v1/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	summaries, err := h.directory.ListForUser(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to list conversations")
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, summaries)
}

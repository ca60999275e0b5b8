package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"messenger-backend/internal/middleware"
	"messenger-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

const maxUploadMemory = 32 << 20 // 32 MiB buffered before spilling to disk

// MessageHandler handles message-related HTTP requests
type MessageHandler struct {
	pipelines *services.Pipelines
	uploader  services.Uploader
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(pipelines *services.Pipelines, uploader services.Uploader) *MessageHandler {
	return &MessageHandler{
		pipelines: pipelines,
		uploader:  uploader,
	}
}

// List handles GET /api/v1/conversations/{conversation_id}/messages
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversation_id")
	userID := middleware.GetUserID(r.Context())

	pipeline, err := h.pipelines.GetFor(r.Context(), conversationID, userID)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	views, err := pipeline.Messages(r.Context())
	if err != nil {
		log.Error().Err(err).Str("conversation_id", conversationID).Msg("Failed to list messages")
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, views)
}

// SendRequest is the body of POST /api/v1/conversations/{conversation_id}/messages
type SendRequest struct {
	Body      string `json:"body"`
	ReplyToID string `json:"reply_to_id"`
}

// Send handles POST /api/v1/conversations/{conversation_id}/messages
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversation_id")
	senderID := middleware.GetUserID(r.Context())

	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	pipeline, err := h.pipelines.GetFor(r.Context(), conversationID, senderID)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	msg, err := pipeline.Send(r.Context(), senderID, req.Body, req.ReplyToID)
	if err != nil {
		log.Error().Err(err).Str("conversation_id", conversationID).Msg("Failed to send message")
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, msg)
}

// Attach handles POST /api/v1/conversations/{conversation_id}/attachments
func (h *MessageHandler) Attach(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversation_id")
	senderID := middleware.GetUserID(r.Context())

	file, closeFile, ok := h.formFile(w, r)
	if !ok {
		return
	}
	defer closeFile()

	pipeline, err := h.pipelines.GetFor(r.Context(), conversationID, senderID)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	msg, err := pipeline.Attach(r.Context(), senderID, file, h.uploader)
	if err != nil {
		log.Error().Err(err).Str("conversation_id", conversationID).Msg("Failed to attach file")
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, msg)
}

// RecordVoiceNote handles POST /api/v1/conversations/{conversation_id}/voice-notes
func (h *MessageHandler) RecordVoiceNote(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversation_id")
	senderID := middleware.GetUserID(r.Context())

	file, closeFile, ok := h.formFile(w, r)
	if !ok {
		return
	}
	defer closeFile()

	duration := 0
	if v := r.FormValue("duration_seconds"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			duration = parsed
		}
	}

	pipeline, err := h.pipelines.GetFor(r.Context(), conversationID, senderID)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	msg, err := pipeline.RecordVoiceNote(r.Context(), senderID, file, duration, h.uploader)
	if err != nil {
		log.Error().Err(err).Str("conversation_id", conversationID).Msg("Failed to record voice note")
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, msg)
}

// ActionRequest is the body of POST .../messages/{message_id}/actions
type ActionRequest struct {
	Action services.Action `json:"action"`
}

// Action handles POST /api/v1/conversations/{conversation_id}/messages/{message_id}/actions
func (h *MessageHandler) Action(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversation_id")
	messageID := chi.URLParam(r, "message_id")
	userID := middleware.GetUserID(r.Context())

	var req ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	pipeline, err := h.pipelines.GetFor(r.Context(), conversationID, userID)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	result, err := pipeline.Apply(r.Context(), req.Action, messageID, userID)
	if err != nil {
		log.Error().
			Err(err).
			Str("conversation_id", conversationID).
			Str("message_id", messageID).
			Str("action", string(req.Action)).
			Msg("Failed to apply message action")
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// ForwardRequest is the body of POST .../messages/{message_id}/forward
type ForwardRequest struct {
	TargetConversationID string `json:"target_conversation_id"`
}

// Forward handles POST /api/v1/conversations/{conversation_id}/messages/{message_id}/forward
func (h *MessageHandler) Forward(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversation_id")
	messageID := chi.URLParam(r, "message_id")
	userID := middleware.GetUserID(r.Context())

	var req ForwardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	pipeline, err := h.pipelines.GetFor(r.Context(), conversationID, userID)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	msg, err := pipeline.Forward(r.Context(), messageID, req.TargetConversationID, userID)
	if err != nil {
		log.Error().
			Err(err).
			Str("message_id", messageID).
			Str("target_conversation_id", req.TargetConversationID).
			Msg("Failed to forward message")
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, msg)
}

// formFile extracts the multipart "file" field into a FileUpload
func (h *MessageHandler) formFile(w http.ResponseWriter, r *http.Request) (services.FileUpload, func() error, bool) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		respondError(w, "Invalid multipart form", http.StatusBadRequest)
		return services.FileUpload{}, nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, "file field is required", http.StatusBadRequest)
		return services.FileUpload{}, nil, false
	}

	upload := services.FileUpload{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Content:     file,
	}
	return upload, file.Close, true
}

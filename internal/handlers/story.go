package handlers

import (
	"net/http"

	"messenger-backend/internal/middleware"
	"messenger-backend/internal/models"
	"messenger-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// StoryHandler handles story-related HTTP requests
type StoryHandler struct {
	stories  *services.Stories
	sessions *services.PlaybackSessions
}

// NewStoryHandler creates a new story handler
func NewStoryHandler(stories *services.Stories, sessions *services.PlaybackSessions) *StoryHandler {
	return &StoryHandler{
		stories:  stories,
		sessions: sessions,
	}
}

// Publish handles POST /api/v1/stories (multipart: file, caption)
func (h *StoryHandler) Publish(w http.ResponseWriter, r *http.Request) {
	authorID := middleware.GetUserID(r.Context())

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		respondError(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, "file field is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	upload := services.FileUpload{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Content:     file,
	}

	story, err := h.stories.Publish(r.Context(), authorID, upload, r.FormValue("caption"))
	if err != nil {
		log.Error().Err(err).Str("user_id", authorID).Msg("Failed to publish story")
		respondEngineError(w, err)
		return
	}

	log.Info().Str("story_id", story.ID).Str("user_id", authorID).Msg("Story published")

	respondJSON(w, http.StatusOK, story)
}

// List handles GET /api/v1/stories
func (h *StoryHandler) List(w http.ResponseWriter, r *http.Request) {
	viewerID := middleware.GetUserID(r.Context())

	feed, err := h.stories.ListActive(r.Context(), viewerID)
	if err != nil {
		log.Error().Err(err).Str("user_id", viewerID).Msg("Failed to list stories")
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, feed)
}

// View handles POST /api/v1/stories/{story_id}/view
func (h *StoryHandler) View(w http.ResponseWriter, r *http.Request) {
	storyID := chi.URLParam(r, "story_id")
	viewerID := middleware.GetUserID(r.Context())

	if err := h.stories.View(r.Context(), storyID, viewerID); err != nil {
		log.Error().Err(err).Str("story_id", storyID).Str("user_id", viewerID).Msg("Failed to record story view")
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// PlaybackResponse is the wire form of a playback session's state
type PlaybackResponse struct {
	State    string        `json:"state"`
	Index    int           `json:"index"`
	Progress int           `json:"progress"`
	Story    *models.Story `json:"story,omitempty"`
}

func playbackResponse(s *services.PlaybackSession) PlaybackResponse {
	state, index, progress := s.State()
	resp := PlaybackResponse{Index: index, Progress: progress}
	if state == services.PlaybackPlaying {
		resp.State = "playing"
		resp.Story = s.Current()
	} else {
		resp.State = "closed"
	}
	return resp
}

// OpenPlayback handles POST /api/v1/stories/playback
func (h *StoryHandler) OpenPlayback(w http.ResponseWriter, r *http.Request) {
	viewerID := middleware.GetUserID(r.Context())

	session, err := h.sessions.Open(r.Context(), viewerID)
	if err != nil {
		log.Error().Err(err).Str("user_id", viewerID).Msg("Failed to open story playback")
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, playbackResponse(session))
}

// PlaybackState handles GET /api/v1/stories/playback
func (h *StoryHandler) PlaybackState(w http.ResponseWriter, r *http.Request) {
	viewerID := middleware.GetUserID(r.Context())

	session, ok := h.sessions.Get(viewerID)
	if !ok {
		respondJSON(w, http.StatusOK, PlaybackResponse{State: "closed"})
		return
	}

	respondJSON(w, http.StatusOK, playbackResponse(session))
}

// NextStory handles POST /api/v1/stories/playback/next
func (h *StoryHandler) NextStory(w http.ResponseWriter, r *http.Request) {
	viewerID := middleware.GetUserID(r.Context())

	session, ok := h.sessions.Get(viewerID)
	if !ok {
		respondError(w, "no playback session", http.StatusNotFound)
		return
	}
	session.Next(r.Context())

	respondJSON(w, http.StatusOK, playbackResponse(session))
}

// PreviousStory handles POST /api/v1/stories/playback/previous
func (h *StoryHandler) PreviousStory(w http.ResponseWriter, r *http.Request) {
	viewerID := middleware.GetUserID(r.Context())

	session, ok := h.sessions.Get(viewerID)
	if !ok {
		respondError(w, "no playback session", http.StatusNotFound)
		return
	}
	session.Previous(r.Context())

	respondJSON(w, http.StatusOK, playbackResponse(session))
}

// ClosePlayback handles DELETE /api/v1/stories/playback
func (h *StoryHandler) ClosePlayback(w http.ResponseWriter, r *http.Request) {
	viewerID := middleware.GetUserID(r.Context())

	h.sessions.Close(viewerID)

	respondJSON(w, http.StatusOK, PlaybackResponse{State: "closed"})
}

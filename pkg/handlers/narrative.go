package handlers

import (
	"encoding/json"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap"

	"github.com/storymine-hq/storymine-engine/pkg/services"
)

// NarrativeExploreRequest is the explore endpoint request body.
type NarrativeExploreRequest struct {
	Theme string `json:"theme"`
	Limit int    `json:"limit"`
}

// Validate implements request validation for NarrativeExploreRequest.
func (r NarrativeExploreRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Theme, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Limit, validation.Min(0), validation.Max(20)),
	)
}

// NarrativeChatRequest is the narrative chat request body.
type NarrativeChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// Validate implements request validation for NarrativeChatRequest.
func (r NarrativeChatRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Message, validation.Required, validation.Length(1, 2000)),
	)
}

// NarrativeStoriesResponse is the story listing payload.
type NarrativeStoriesResponse struct {
	Stories []services.Story `json:"stories"`
	Count   int              `json:"count"`
}

// NarrativeCategoriesResponse is the category listing payload.
type NarrativeCategoriesResponse struct {
	Categories []string `json:"categories"`
}

// NarrativeHandler handles the story-discovery endpoints.
type NarrativeHandler struct {
	narrative services.NarrativeService
	logger    *zap.Logger
}

// NewNarrativeHandler creates a new NarrativeHandler.
func NewNarrativeHandler(narrative services.NarrativeService, logger *zap.Logger) *NarrativeHandler {
	return &NarrativeHandler{narrative: narrative, logger: logger}
}

// RegisterRoutes registers the narrative handler's routes on the given mux.
func (h *NarrativeHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/narrative/stories", h.Stories)
	mux.HandleFunc("GET /api/narrative/categories", h.Categories)
	mux.HandleFunc("POST /api/narrative/explore", h.Explore)
	mux.HandleFunc("POST /api/narrative/chat", h.Chat)
	mux.HandleFunc("POST /api/narrative/refresh", h.Refresh)
}

// Stories handles GET /api/narrative/stories requests.
func (h *NarrativeHandler) Stories(w http.ResponseWriter, r *http.Request) {
	stories := h.narrative.Stories(r.Context(), queryInt(r, "limit", 10))
	response := NarrativeStoriesResponse{Stories: stories, Count: len(stories)}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode stories response", zap.Error(err))
	}
}

// Categories handles GET /api/narrative/categories requests.
func (h *NarrativeHandler) Categories(w http.ResponseWriter, r *http.Request) {
	response := NarrativeCategoriesResponse{Categories: h.narrative.Categories()}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode categories response", zap.Error(err))
	}
}

// Explore handles POST /api/narrative/explore requests.
func (h *NarrativeHandler) Explore(w http.ResponseWriter, r *http.Request) {
	var req NarrativeExploreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "theme is required")
		return
	}
	if err := req.Validate(); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result := h.narrative.Explore(r.Context(), services.ExploreRequest{Theme: req.Theme, Limit: req.Limit})
	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to encode explore response", zap.Error(err))
	}
}

// Chat handles POST /api/narrative/chat requests.
func (h *NarrativeHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req NarrativeChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request",
			"message is required and must be a string")
		return
	}
	if err := req.Validate(); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request",
			"message is required and must be a string")
		return
	}

	result := h.narrative.Chat(r.Context(), req.SessionID, req.Message)
	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to encode narrative chat response", zap.Error(err))
	}
}

// Refresh handles POST /api/narrative/refresh requests.
func (h *NarrativeHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	result := h.narrative.Refresh(r.Context())
	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to encode refresh response", zap.Error(err))
	}
}

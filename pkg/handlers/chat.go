package handlers

import (
	"encoding/json"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap"

	"github.com/storymine-hq/storymine-engine/pkg/services"
)

// ChatRequest is the chat endpoint request body.
type ChatRequest struct {
	Message string `json:"message"`
}

// Validate implements request validation for ChatRequest.
func (r ChatRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Message, validation.Required, validation.Length(1, 2000)),
	)
}

// ChatHandler handles the archive chat endpoint.
type ChatHandler struct {
	chat   services.ChatService
	logger *zap.Logger
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(chat services.ChatService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, logger: logger}
}

// RegisterRoutes registers the chat handler's routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.Chat)
}

// Chat handles POST /api/chat requests. A missing or non-string message is a
// 400 with an error field; the chat service itself never fails, so every
// valid request gets a 200.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
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

	response := h.chat.Respond(r.Context(), req.Message)
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode chat response", zap.Error(err))
	}
}

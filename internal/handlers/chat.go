package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/vitalog/vitalog-api/internal/chat"
	"github.com/vitalog/vitalog-api/internal/models"
	"github.com/vitalog/vitalog-api/internal/ratelimit"
	"github.com/vitalog/vitalog-api/internal/validation"
)

// ChatbotHandler handles conversational assistant requests
type ChatbotHandler struct {
	orchestrator *chat.Orchestrator
	limiter      *ratelimit.Limiter
}

// NewChatbotHandler creates a new chatbot handler
func NewChatbotHandler(orchestrator *chat.Orchestrator, limiter *ratelimit.Limiter) *ChatbotHandler {
	return &ChatbotHandler{orchestrator: orchestrator, limiter: limiter}
}

// RegisterRoutes registers chatbot routes
func (h *ChatbotHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/chatbot", h.SendMessage).Methods("POST")
	r.HandleFunc("/chatbot/history", h.ClearHistory).Methods("DELETE")
	r.HandleFunc("/chatbot/actions", h.ExecuteAction).Methods("POST")
}

// ChatRequest represents a chat message request
type ChatRequest struct {
	Prompt string `json:"prompt" validate:"required,max=4000"`
}

// SendMessage runs one chat turn for the authenticated user
func (h *ChatbotHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticatedUser(w, r)
	if !ok {
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}
	req.Prompt = validation.SanitizeText(req.Prompt)
	if err := validation.Validate.Struct(req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok && len(validationErrors) > 0 {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", fmt.Sprintf("Validation failed: %s", validationErrors[0].Error()))
			return
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request")
		return
	}

	// Quota is checked before any model call
	if allowed, retryAfter := h.limiter.TryConsume(userID, ratelimit.OpChat); !allowed {
		respondRateLimited(w, ratelimit.OpChat, retryAfter)
		return
	}

	response, err := h.orchestrator.ReceiveMessage(r.Context(), userID, req.Prompt)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to get assistant response")
		return
	}

	respondJSON(w, http.StatusOK, response)
}

// ClearHistory drops the user's conversation session. Idempotent.
func (h *ChatbotHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticatedUser(w, r)
	if !ok {
		return
	}

	h.orchestrator.ClearHistory(userID)
	w.WriteHeader(http.StatusNoContent)
}

// ExecuteAction persists a previously returned recommendation action
func (h *ChatbotHandler) ExecuteAction(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticatedUser(w, r)
	if !ok {
		return
	}

	var action models.RecommendationAction
	if err := json.NewDecoder(r.Body).Decode(&action); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}

	if err := h.orchestrator.ExecuteAction(r.Context(), userID, &action); err != nil {
		if validationErr := action.Validate(); validationErr != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", validationErr.Error())
			return
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to execute action")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{"executed": true})
}

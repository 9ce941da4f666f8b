package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/vitalog/vitalog-api/internal/chat"
	"github.com/vitalog/vitalog-api/internal/models"
	"github.com/vitalog/vitalog-api/internal/ratelimit"
	"github.com/vitalog/vitalog-api/internal/recommend"
)

// RecommendationHandler handles recommendation and profile endpoints
type RecommendationHandler struct {
	service  *recommend.Service
	profiles *chat.ProfileService
	limiter  *ratelimit.Limiter
}

// NewRecommendationHandler creates a new recommendation handler
func NewRecommendationHandler(service *recommend.Service, profiles *chat.ProfileService, limiter *ratelimit.Limiter) *RecommendationHandler {
	return &RecommendationHandler{
		service:  service,
		profiles: profiles,
		limiter:  limiter,
	}
}

// RegisterRoutes registers recommendation routes
func (h *RecommendationHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/users/{userId}/meal-recommendations", h.GetMealRecommendations).Methods("GET")
	r.HandleFunc("/users/{userId}/meal-recommendations/generate", h.GenerateMealRecommendations).Methods("POST")
	r.HandleFunc("/users/{userId}/workout-recommendations", h.GetWorkoutRecommendations).Methods("GET")
	r.HandleFunc("/users/{userId}/workout-recommendations/generate", h.GenerateWorkoutRecommendations).Methods("POST")
	r.HandleFunc("/users/{userId}/profile/generate", h.GenerateProfile).Methods("POST")
}

// GenerateMealRequest carries the client clock, the targeted meal type, and
// prior recommendations the new set should steer away from. An absent or
// AUTO meal type is derived from the hour.
type GenerateMealRequest struct {
	CurrentTime            *time.Time               `json:"currentTime,omitempty"`
	MealType               models.MealType          `json:"mealType,omitempty"`
	CurrentRecommendations []models.RecommendedMeal `json:"currentRecommendations,omitempty"`
}

// GenerateWorkoutRequest carries the client clock, the available time and
// preferred intensity, and prior recommendations the new set should steer
// away from.
type GenerateWorkoutRequest struct {
	CurrentTime            *time.Time                  `json:"currentTime,omitempty"`
	AvailableMinutes       int                         `json:"availableMinutes,omitempty"`
	PreferredIntensity     models.IntensityLevel       `json:"preferredIntensity,omitempty"`
	CurrentRecommendations []models.RecommendedWorkout `json:"currentRecommendations,omitempty"`
}

// GetMealRecommendations serves the cached meal set, generating on a miss
func (h *RecommendationHandler) GetMealRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, ok := authorizedUser(w, r)
	if !ok {
		return
	}

	if allowed, retryAfter := h.limiter.TryConsume(userID, ratelimit.OpMealRecommendation); !allowed {
		respondRateLimited(w, ratelimit.OpMealRecommendation, retryAfter)
		return
	}

	set, err := h.service.MealRecommendations(r.Context(), userID)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to get meal recommendations")
		return
	}

	respondJSON(w, http.StatusOK, set)
}

// GenerateMealRecommendations forces a fresh meal set
func (h *RecommendationHandler) GenerateMealRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, ok := authorizedUser(w, r)
	if !ok {
		return
	}

	var req GenerateMealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}

	if allowed, retryAfter := h.limiter.TryConsume(userID, ratelimit.OpMealRecommendation); !allowed {
		respondRateLimited(w, ratelimit.OpMealRecommendation, retryAfter)
		return
	}

	var at time.Time
	if req.CurrentTime != nil {
		at = *req.CurrentTime
	}

	set, err := h.service.GenerateMealRecommendations(r.Context(), userID, recommend.MealGenerationInput{
		At:       at,
		MealType: req.MealType,
		Avoid:    req.CurrentRecommendations,
	})
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to generate meal recommendations")
		return
	}

	respondJSON(w, http.StatusOK, set)
}

// GetWorkoutRecommendations serves the cached workout set, generating on a miss
func (h *RecommendationHandler) GetWorkoutRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, ok := authorizedUser(w, r)
	if !ok {
		return
	}

	if allowed, retryAfter := h.limiter.TryConsume(userID, ratelimit.OpWorkoutRecommendation); !allowed {
		respondRateLimited(w, ratelimit.OpWorkoutRecommendation, retryAfter)
		return
	}

	set, err := h.service.WorkoutRecommendations(r.Context(), userID)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to get workout recommendations")
		return
	}

	respondJSON(w, http.StatusOK, set)
}

// GenerateWorkoutRecommendations forces a fresh workout set
func (h *RecommendationHandler) GenerateWorkoutRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, ok := authorizedUser(w, r)
	if !ok {
		return
	}

	var req GenerateWorkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}

	if allowed, retryAfter := h.limiter.TryConsume(userID, ratelimit.OpWorkoutRecommendation); !allowed {
		respondRateLimited(w, ratelimit.OpWorkoutRecommendation, retryAfter)
		return
	}

	var at time.Time
	if req.CurrentTime != nil {
		at = *req.CurrentTime
	}

	set, err := h.service.GenerateWorkoutRecommendations(r.Context(), userID, recommend.WorkoutGenerationInput{
		At:                 at,
		AvailableMinutes:   req.AvailableMinutes,
		PreferredIntensity: req.PreferredIntensity,
		Avoid:              req.CurrentRecommendations,
	})
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to generate workout recommendations")
		return
	}

	respondJSON(w, http.StatusOK, set)
}

// GenerateProfile rebuilds the user's free-text profile on demand
func (h *RecommendationHandler) GenerateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := authorizedUser(w, r)
	if !ok {
		return
	}

	if allowed, retryAfter := h.limiter.TryConsume(userID, ratelimit.OpProfile); !allowed {
		respondRateLimited(w, ratelimit.OpProfile, retryAfter)
		return
	}

	profile, err := h.profiles.Generate(r.Context(), userID)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to generate profile")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"profile": profile})
}

package handlers

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/vitalog/vitalog-api/internal/ratelimit"
	"github.com/vitalog/vitalog-api/internal/request"
)

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   true,
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// sanitizeErrorMessage removes internal details from error messages
func sanitizeErrorMessage(message string) string {
	sanitized := message
	if len(sanitized) > 200 {
		sanitized = sanitized[:200] + "..."
	}
	return sanitized
}

// respondJSONError sends an error JSON response with sanitized error messages
func respondJSONError(w http.ResponseWriter, status int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   false,
		"error":     errorType,
		"message":   sanitizeErrorMessage(message),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// authenticatedUser returns the authenticated user's ID, rejecting requests
// that carry no user.
func authenticatedUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	user := request.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return uuid.Nil, false
	}
	return user.ID, true
}

// authorizedUser resolves the {userId} path variable and rejects requests
// where the authenticated user does not match it.
func authorizedUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := authenticatedUser(w, r)
	if !ok {
		return uuid.Nil, false
	}

	pathID, err := uuid.Parse(mux.Vars(r)["userId"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid user ID")
		return uuid.Nil, false
	}

	if pathID != userID {
		respondJSONError(w, http.StatusForbidden, "Forbidden", "Cannot access another user's data")
		return uuid.Nil, false
	}

	return userID, true
}

// respondRateLimited sends a 429 with a Retry-After header in whole seconds
func respondRateLimited(w http.ResponseWriter, op ratelimit.Operation, retryAfter time.Duration) {
	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	respondJSONError(w, http.StatusTooManyRequests, "Too Many Requests",
		"Rate limit exceeded for "+string(op)+", retry after "+strconv.Itoa(seconds)+"s")
}

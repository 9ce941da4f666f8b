package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/vitalog/vitalog-api/internal/database"
	"github.com/vitalog/vitalog-api/internal/queue"
)

// HealthChecker handles health check requests
type HealthChecker struct {
	db    *database.DB
	queue queue.JobQueue
}

// NewHealthChecker creates a new health checker. queue may be nil when the
// process runs without a job queue.
func NewHealthChecker(db *database.DB, q queue.JobQueue) *HealthChecker {
	return &HealthChecker{db: db, queue: q}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthCheck handles the /healthz endpoint
func (h *HealthChecker) HealthCheck(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("mode")

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if mode == "extended" {
		h.respondExtended(w, r)
		return
	}

	// Basic mode - just return that the server is running
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

// Ready handles the /ready endpoint, always running dependency checks
func (h *HealthChecker) Ready(w http.ResponseWriter, r *http.Request) {
	h.respondExtended(w, r)
}

func (h *HealthChecker) respondExtended(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    make(map[string]string),
	}

	if err := h.checkDatabase(r.Context()); err != nil {
		response.Status = "unhealthy"
		response.Checks["database"] = "unhealthy: " + err.Error()
	} else {
		response.Checks["database"] = "healthy"
	}

	if h.queue != nil {
		if err := h.queue.HealthCheck(r.Context()); err != nil {
			response.Status = "unhealthy"
			response.Checks["queue"] = "unhealthy: " + err.Error()
		} else {
			response.Checks["queue"] = "healthy"
		}
	}

	statusCode := http.StatusOK
	if response.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

// checkDatabase verifies the database connection
func (h *HealthChecker) checkDatabase(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return h.db.PingContext(ctx)
}

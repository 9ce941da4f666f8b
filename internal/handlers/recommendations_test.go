package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vitalog/vitalog-api/internal/chat"
	"github.com/vitalog/vitalog-api/internal/models"
	"github.com/vitalog/vitalog-api/internal/ratelimit"
	"github.com/vitalog/vitalog-api/internal/recommend"
	"github.com/vitalog/vitalog-api/internal/request"
	"github.com/vitalog/vitalog-api/internal/services/ai"
)

func newTestRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func serveTest(router *mux.Router, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

const mealSetJSON = `{
	"recommendations": [{
		"name": "Grilled chicken salad",
		"description": "Lean protein with greens",
		"estimatedCalories": 420,
		"estimatedCarbs": 18,
		"estimatedProtein": 38,
		"estimatedFat": 20,
		"preparationTime": "20 minutes",
		"ingredients": ["chicken breast", "mixed greens"],
		"suitabilityReason": "High protein, moderate calories"
	}],
	"reasoning": "Protein-forward option for the evening",
	"optimalTime": "18:30"
}`

const workoutSetJSON = `{
	"recommendations": [{
		"name": "Interval run",
		"description": "Alternating pace",
		"durationMinutes": 45,
		"estimatedCaloriesBurn": 420,
		"difficulty": "intermediate",
		"exercises": [{"name": "Run", "type": "cardio", "durationSeconds": 2700}],
		"suitabilityReason": "Matches the available time"
	}],
	"reasoning": "Cardio fits the evening slot",
	"optimalTime": "18:00",
	"intensityRecommendation": "HIGH"
}`

type recFixture struct {
	userID   uuid.UUID
	router   *mux.Router
	users    *userRepo
	provider *opProvider
}

func newRecFixture(t *testing.T, policies map[ratelimit.Operation]ratelimit.Policy) *recFixture {
	t.Helper()

	userID := uuid.New()
	profile := "Prefers high-protein meals."
	user := &models.User{ID: userID, Email: "test@example.com", Profile: &profile}

	provider := &opProvider{replies: map[string]string{
		"generate_meal_recommendations":    mealSetJSON,
		"generate_workout_recommendations": workoutSetJSON,
		"generate_profile":                 "Stays active, eats light dinners.",
	}}
	builder := ai.NewPromptBuilder()
	users := &userRepo{user: user}
	meals := &mealRepo{}
	exercises := &exerciseRepo{}
	measurements := &measurementRepo{}

	cache := recommend.NewCache(users, recommend.DefaultTTL, zap.NewNop())
	service := recommend.NewService(provider, builder, cache, users, meals, exercises, measurements, zap.NewNop())
	profiles := chat.NewProfileService(provider, builder, users, meals, exercises, measurements, zap.NewNop())

	limiter := ratelimit.New(policies)
	handler := NewRecommendationHandler(service, profiles, limiter)

	router := mux.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(request.WithUser(r.Context(), user)))
		})
	})
	handler.RegisterRoutes(router)

	return &recFixture{userID: userID, router: router, users: users, provider: provider}
}

func TestGetMealRecommendations(t *testing.T) {
	t.Parallel()

	f := newRecFixture(t, map[ratelimit.Operation]ratelimit.Policy{
		ratelimit.OpMealRecommendation: ratelimit.PerHour(15),
	})

	req := newTestRequest(t, "GET", "/users/"+f.userID.String()+"/meal-recommendations", nil)
	rec := serveTest(f.router, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Success bool                          `json:"success"`
		Data    models.MealRecommendationSet `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(envelope.Data.Recommendations) != 1 {
		t.Fatalf("expected 1 recommendation, got %d", len(envelope.Data.Recommendations))
	}
	if envelope.Data.Recommendations[0].Name != "Grilled chicken salad" {
		t.Errorf("unexpected recommendation name: %q", envelope.Data.Recommendations[0].Name)
	}
}

func TestGenerateMealRecommendations(t *testing.T) {
	t.Parallel()

	f := newRecFixture(t, map[ratelimit.Operation]ratelimit.Policy{
		ratelimit.OpMealRecommendation: ratelimit.PerHour(15),
	})

	when := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	body := GenerateMealRequest{
		CurrentTime:            &when,
		MealType:               models.MealTypeBreakfast,
		CurrentRecommendations: []models.RecommendedMeal{{Name: "Pasta"}},
	}
	req := newTestRequest(t, "POST", "/users/"+f.userID.String()+"/meal-recommendations/generate", body)
	rec := serveTest(f.router, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	msgs := f.provider.msgs["generate_meal_recommendations"]
	if len(msgs) == 0 {
		t.Fatal("no meal generation prompt captured")
	}
	prompt := msgs[len(msgs)-1].Content
	if !strings.Contains(prompt, "Meal type: BREAKFAST") {
		t.Error("requested meal type not threaded into the prompt")
	}
	if !strings.Contains(prompt, "Pasta") {
		t.Error("prior recommendations not threaded into the prompt")
	}
}

func TestGenerateWorkoutRecommendations(t *testing.T) {
	t.Parallel()

	f := newRecFixture(t, map[ratelimit.Operation]ratelimit.Policy{
		ratelimit.OpWorkoutRecommendation: ratelimit.PerHour(20),
	})

	body := GenerateWorkoutRequest{
		AvailableMinutes:   45,
		PreferredIntensity: models.IntensityHigh,
	}
	req := newTestRequest(t, "POST", "/users/"+f.userID.String()+"/workout-recommendations/generate", body)
	rec := serveTest(f.router, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	msgs := f.provider.msgs["generate_workout_recommendations"]
	if len(msgs) == 0 {
		t.Fatal("no workout generation prompt captured")
	}
	prompt := msgs[len(msgs)-1].Content
	if !strings.Contains(prompt, "Available time: 45 minutes") {
		t.Error("available minutes not threaded into the prompt")
	}
	if !strings.Contains(prompt, "Preferred intensity: HIGH") {
		t.Error("preferred intensity not threaded into the prompt")
	}
}

func TestGenerateProfileRateLimited(t *testing.T) {
	t.Parallel()

	f := newRecFixture(t, map[ratelimit.Operation]ratelimit.Policy{
		ratelimit.OpProfile: {Capacity: 1, RefillAmount: 1, RefillInterval: time.Hour},
	})
	path := "/users/" + f.userID.String() + "/profile/generate"

	first := serveTest(f.router, newTestRequest(t, "POST", path, struct{}{}))
	if first.Code != http.StatusOK {
		t.Fatalf("expected first profile generation to pass, got %d: %s", first.Code, first.Body.String())
	}

	second := serveTest(f.router, newTestRequest(t, "POST", path, struct{}{}))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header on 429")
	}
}

func TestGetWorkoutRecommendationsCrossUserForbidden(t *testing.T) {
	t.Parallel()

	f := newRecFixture(t, nil)

	req := newTestRequest(t, "GET", "/users/"+uuid.NewString()+"/workout-recommendations", nil)
	rec := serveTest(f.router, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vitalog/vitalog-api/internal/chat"
	"github.com/vitalog/vitalog-api/internal/models"
	"github.com/vitalog/vitalog-api/internal/ratelimit"
	"github.com/vitalog/vitalog-api/internal/request"
	"github.com/vitalog/vitalog-api/internal/services/ai"
)

type opProvider struct {
	replies map[string]string
	msgs    map[string][]ai.Message
}

func (p *opProvider) Complete(_ context.Context, messages []ai.Message, opt ai.Options) (string, error) {
	if p.msgs == nil {
		p.msgs = make(map[string][]ai.Message)
	}
	p.msgs[opt.Operation] = messages
	reply, ok := p.replies[opt.Operation]
	if !ok {
		return "", fmt.Errorf("unexpected operation %q", opt.Operation)
	}
	return reply, nil
}

type userRepo struct {
	user *models.User
}

func (r *userRepo) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if r.user == nil || r.user.ID != id {
		return nil, fmt.Errorf("user not found")
	}
	return r.user, nil
}

func (r *userRepo) UpdateProfile(_ context.Context, _ uuid.UUID, profile string) error {
	p := profile
	r.user.Profile = &p
	return nil
}

func (r *userRepo) UpdateRecommendationCache(context.Context, uuid.UUID, models.RecommendationKind, *string, *time.Time) error {
	return nil
}

type mealRepo struct{ created []*models.Meal }

func (r *mealRepo) Create(_ context.Context, meal *models.Meal) error {
	r.created = append(r.created, meal)
	return nil
}

func (r *mealRepo) ListRecentByUserID(context.Context, uuid.UUID, int) ([]*models.Meal, error) {
	return nil, nil
}

type exerciseRepo struct{ created []*models.Exercise }

func (r *exerciseRepo) Create(_ context.Context, exercise *models.Exercise) error {
	r.created = append(r.created, exercise)
	return nil
}

func (r *exerciseRepo) ListRecentByUserID(context.Context, uuid.UUID, int) ([]*models.Exercise, error) {
	return nil, nil
}

type measurementRepo struct{}

func (r *measurementRepo) LatestByUserID(context.Context, uuid.UUID) (*models.Measurement, error) {
	return nil, nil
}

type chatFixture struct {
	userID  uuid.UUID
	handler *ChatbotHandler
	router  *mux.Router
	meals   *mealRepo
}

func newChatFixture(t *testing.T, chatPolicy ratelimit.Policy) *chatFixture {
	t.Helper()

	userID := uuid.New()
	profile := "Likes short workouts."
	user := &models.User{ID: userID, Email: "test@example.com", Profile: &profile}

	provider := &opProvider{replies: map[string]string{
		"chat":            "Here is a short reply.",
		"classify_intent": "none",
	}}
	builder := ai.NewPromptBuilder()
	classifier := ai.NewIntentClassifier(provider, builder, zap.NewNop())
	users := &userRepo{user: user}
	meals := &mealRepo{}
	exercises := &exerciseRepo{}
	measurements := &measurementRepo{}
	sessions := chat.NewStore(10)
	profiles := chat.NewProfileService(provider, builder, users, meals, exercises, measurements, zap.NewNop())
	orchestrator := chat.NewOrchestrator(provider, builder, classifier, sessions, profiles, users, meals, exercises, nil, zap.NewNop())

	limiter := ratelimit.New(map[ratelimit.Operation]ratelimit.Policy{
		ratelimit.OpChat: chatPolicy,
	})
	handler := NewChatbotHandler(orchestrator, limiter)

	router := mux.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(request.WithUser(r.Context(), user)))
		})
	})
	handler.RegisterRoutes(router)

	return &chatFixture{userID: userID, handler: handler, router: router, meals: meals}
}

func (f *chatFixture) send(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestSendMessage(t *testing.T) {
	t.Parallel()

	f := newChatFixture(t, ratelimit.PerMinute(20))
	rec := f.send(t, "POST", "/chatbot", ChatRequest{Prompt: "hello"})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Success bool `json:"success"`
		Data    struct {
			Response string                        `json:"response"`
			Actions  []models.RecommendationAction `json:"actions"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !envelope.Success {
		t.Error("expected success envelope")
	}
	if envelope.Data.Response != "Here is a short reply." {
		t.Errorf("unexpected response text: %q", envelope.Data.Response)
	}
}

func TestSendMessageEmptyPrompt(t *testing.T) {
	t.Parallel()

	f := newChatFixture(t, ratelimit.PerMinute(20))
	rec := f.send(t, "POST", "/chatbot", ChatRequest{Prompt: "   "})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSendMessageRateLimited(t *testing.T) {
	t.Parallel()

	f := newChatFixture(t, ratelimit.PerMinute(1))
	path := "/chatbot"

	if rec := f.send(t, "POST", path, ChatRequest{Prompt: "hello"}); rec.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", rec.Code)
	}

	rec := f.send(t, "POST", path, ChatRequest{Prompt: "hello again"})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header on 429")
	}
}

func TestClearHistory(t *testing.T) {
	t.Parallel()

	f := newChatFixture(t, ratelimit.PerMinute(20))
	rec := f.send(t, "DELETE", "/chatbot/history", nil)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestExecuteActionAddMeal(t *testing.T) {
	t.Parallel()

	f := newChatFixture(t, ratelimit.PerMinute(20))
	action := models.NewMealAction(models.MealActionData{Name: "Oatmeal", Calories: 320})
	rec := f.send(t, "POST", "/chatbot/actions", action)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(f.meals.created) != 1 {
		t.Fatalf("expected 1 meal created, got %d", len(f.meals.created))
	}
	if f.meals.created[0].Name != "Oatmeal" {
		t.Errorf("unexpected meal name: %q", f.meals.created[0].Name)
	}
}

func TestExecuteActionInvalid(t *testing.T) {
	t.Parallel()

	f := newChatFixture(t, ratelimit.PerMinute(20))
	action := models.RecommendationAction{Type: "ADD_MEAL"} // missing payload
	rec := f.send(t, "POST", "/chatbot/actions", action)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestUnauthenticatedRequestRejected(t *testing.T) {
	t.Parallel()

	f := newChatFixture(t, ratelimit.PerMinute(20))

	// Bypass the fixture middleware so no user lands in the context
	router := mux.NewRouter()
	f.handler.RegisterRoutes(router)

	req := httptest.NewRequest("POST", "/chatbot", bytes.NewBufferString(`{"prompt":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vitalog/vitalog-api/internal/models"
	"github.com/vitalog/vitalog-api/internal/queue"
	"github.com/vitalog/vitalog-api/internal/services/ai"
)

// opProvider scripts completion replies per operation name
type opProvider struct {
	replies map[string]string
	errs    map[string]error
	calls   map[string]int
	msgs    map[string][]ai.Message
}

func newOpProvider() *opProvider {
	return &opProvider{
		replies: make(map[string]string),
		errs:    make(map[string]error),
		calls:   make(map[string]int),
		msgs:    make(map[string][]ai.Message),
	}
}

func (p *opProvider) Complete(_ context.Context, messages []ai.Message, opts ai.Options) (string, error) {
	p.calls[opts.Operation]++
	p.msgs[opts.Operation] = messages
	if err, ok := p.errs[opts.Operation]; ok {
		return "", err
	}
	reply, ok := p.replies[opts.Operation]
	if !ok {
		return "", errors.New("no scripted reply for " + opts.Operation)
	}
	return reply, nil
}

type userRepo struct {
	user *models.User
}

func (r *userRepo) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if r.user == nil || r.user.ID != id {
		return nil, errors.New("user not found")
	}
	u := *r.user
	return &u, nil
}

func (r *userRepo) UpdateProfile(_ context.Context, _ uuid.UUID, profile string) error {
	r.user.Profile = &profile
	return nil
}

func (r *userRepo) UpdateRecommendationCache(_ context.Context, _ uuid.UUID, _ models.RecommendationKind, _ *string, _ *time.Time) error {
	return nil
}

type mealRepo struct {
	created []*models.Meal
}

func (r *mealRepo) Create(_ context.Context, meal *models.Meal) error {
	r.created = append(r.created, meal)
	return nil
}

func (r *mealRepo) ListRecentByUserID(_ context.Context, _ uuid.UUID, _ int) ([]*models.Meal, error) {
	return nil, nil
}

type exerciseRepo struct {
	created []*models.Exercise
	err     error
}

func (r *exerciseRepo) Create(_ context.Context, exercise *models.Exercise) error {
	if r.err != nil {
		return r.err
	}
	r.created = append(r.created, exercise)
	return nil
}

func (r *exerciseRepo) ListRecentByUserID(_ context.Context, _ uuid.UUID, _ int) ([]*models.Exercise, error) {
	return nil, nil
}

type measurementRepo struct{}

func (measurementRepo) LatestByUserID(_ context.Context, _ uuid.UUID) (*models.Measurement, error) {
	return nil, nil
}

type fakeEnqueuer struct {
	jobs []*queue.Job
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, job *queue.Job) error {
	f.jobs = append(f.jobs, job)
	return nil
}

type fixture struct {
	orchestrator *Orchestrator
	provider     *opProvider
	users        *userRepo
	meals        *mealRepo
	exercises    *exerciseRepo
	jobs         *fakeEnqueuer
	userID       uuid.UUID
}

func newFixture(profile string) *fixture {
	user := &models.User{ID: uuid.New(), Email: "a@b.c"}
	if profile != "" {
		user.Profile = &profile
	}

	provider := newOpProvider()
	provider.replies["chat"] = "- drink water\n- eat greens"
	provider.replies["classify_intent"] = "none"

	users := &userRepo{user: user}
	meals := &mealRepo{}
	exercises := &exerciseRepo{}
	jobs := &fakeEnqueuer{}

	builder := ai.NewPromptBuilder()
	profiles := NewProfileService(provider, builder, users, meals, exercises, measurementRepo{}, nil)
	classifier := ai.NewIntentClassifier(provider, builder, nil)
	sessions := NewStore(10)

	return &fixture{
		orchestrator: NewOrchestrator(provider, builder, classifier, sessions, profiles, users, meals, exercises, jobs, nil),
		provider:     provider,
		users:        users,
		meals:        meals,
		exercises:    exercises,
		jobs:         jobs,
		userID:       user.ID,
	}
}

func TestReceiveMessage_PlainChat(t *testing.T) {
	t.Parallel()

	f := newFixture("Eats late.")

	resp, err := f.orchestrator.ReceiveMessage(context.Background(), f.userID, "any tips?")
	if err != nil {
		t.Fatalf("ReceiveMessage failed: %v", err)
	}
	if resp.Response != "- drink water\n- eat greens" {
		t.Errorf("Response = %q", resp.Response)
	}
	if resp.Actions != nil {
		t.Errorf("Actions = %v, want nil for intent none", resp.Actions)
	}

	turns := f.orchestrator.sessions.Snapshot(f.userID)
	if len(turns) != 2 || turns[0].Role != ai.RoleUser || turns[1].Role != ai.RoleAssistant {
		t.Errorf("unexpected recorded turns: %+v", turns)
	}
}

func TestReceiveMessage_InjectsProfileAndHistory(t *testing.T) {
	t.Parallel()

	f := newFixture("Vegetarian, runs daily.")

	if _, err := f.orchestrator.ReceiveMessage(context.Background(), f.userID, "first"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.orchestrator.ReceiveMessage(context.Background(), f.userID, "second"); err != nil {
		t.Fatal(err)
	}

	messages := f.provider.msgs["chat"]
	if !strings.Contains(messages[0].Content, "Vegetarian") {
		t.Error("system message missing profile")
	}
	// system + 2 history turns + new message
	if len(messages) != 4 {
		t.Errorf("got %d messages, want 4", len(messages))
	}
	if messages[1].Content != "first" {
		t.Errorf("history not replayed: %+v", messages[1])
	}
}

func TestReceiveMessage_TrimsLongReply(t *testing.T) {
	t.Parallel()

	f := newFixture("p")
	f.provider.replies["chat"] = strings.Repeat("word ", 200)

	resp, err := f.orchestrator.ReceiveMessage(context.Background(), f.userID, "hi")
	if err != nil {
		t.Fatal(err)
	}
	if got := len(strings.Fields(resp.Response)); got != MaxResponseWords+1 {
		t.Errorf("trimmed reply has %d fields, want %d words plus ellipsis", got, MaxResponseWords+1)
	}
	if !strings.HasSuffix(resp.Response, "…") {
		t.Error("trimmed reply missing ellipsis marker")
	}
}

func TestReceiveMessage_WorkoutIntentAddsActions(t *testing.T) {
	t.Parallel()

	f := newFixture("p")
	f.provider.replies["classify_intent"] = `{"intentType":"workout"}`
	f.provider.replies["generate_chat_actions"] = `[{"name":"Morning run","description":"Easy pace","durationInMinutes":30,"caloriesBurnt":280}]`

	resp, err := f.orchestrator.ReceiveMessage(context.Background(), f.userID, "I want a quick workout")
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Actions) != 1 {
		t.Fatalf("got %d actions, want 1", len(resp.Actions))
	}
	action := resp.Actions[0]
	if action.Type != models.ActionAddWorkout {
		t.Errorf("action type = %q, want %q", action.Type, models.ActionAddWorkout)
	}
	if action.WorkoutData == nil || action.WorkoutData.Name != "Morning run" {
		t.Errorf("unexpected workout data: %+v", action.WorkoutData)
	}
	if err := action.Validate(); err != nil {
		t.Errorf("returned action invalid: %v", err)
	}
}

func TestReceiveMessage_ActionFailureKeepsReply(t *testing.T) {
	t.Parallel()

	f := newFixture("p")
	f.provider.replies["classify_intent"] = `{"intentType":"meal"}`
	f.provider.errs["generate_chat_actions"] = errors.New("completion timeout")

	resp, err := f.orchestrator.ReceiveMessage(context.Background(), f.userID, "suggest me lunch")
	if err != nil {
		t.Fatalf("action failure must not fail the chat turn: %v", err)
	}
	if resp.Response == "" {
		t.Error("reply lost")
	}
	if resp.Actions != nil {
		t.Errorf("Actions = %v, want nil on generation failure", resp.Actions)
	}
}

func TestReceiveMessage_ClassifierFailureKeepsReply(t *testing.T) {
	t.Parallel()

	f := newFixture("p")
	f.provider.errs["classify_intent"] = errors.New("completion timeout")

	resp, err := f.orchestrator.ReceiveMessage(context.Background(), f.userID, "hello")
	if err != nil {
		t.Fatalf("classifier failure must not fail the chat turn: %v", err)
	}
	if resp.Actions != nil {
		t.Error("expected nil actions when classification fails")
	}
}

func TestReceiveMessage_BaseCompletionFailure(t *testing.T) {
	t.Parallel()

	f := newFixture("p")
	f.provider.errs["chat"] = errors.New("completion timeout")

	if _, err := f.orchestrator.ReceiveMessage(context.Background(), f.userID, "hi"); err == nil {
		t.Fatal("base completion failure must fail the chat turn")
	}
	if got := f.orchestrator.sessions.TurnCount(f.userID); got != 0 {
		t.Errorf("no turns should be recorded on failure, got %d", got)
	}
}

func TestReceiveMessage_GeneratesProfileOnFirstTurn(t *testing.T) {
	t.Parallel()

	f := newFixture("") // user has no profile
	f.provider.replies["generate_profile"] = "Skips breakfast, lifts twice a week."

	if _, err := f.orchestrator.ReceiveMessage(context.Background(), f.userID, "hi"); err != nil {
		t.Fatal(err)
	}

	if f.provider.calls["generate_profile"] != 1 {
		t.Fatalf("generate_profile called %d times, want 1", f.provider.calls["generate_profile"])
	}
	// the freshly generated profile must be injected into this same request
	if !strings.Contains(f.provider.msgs["chat"][0].Content, "Skips breakfast") {
		t.Error("chat system message missing freshly generated profile")
	}
	if f.users.user.Profile == nil || *f.users.user.Profile != "Skips breakfast, lifts twice a week." {
		t.Error("generated profile not persisted")
	}
}

func TestReceiveMessage_ProfileGenerationFailureDegrades(t *testing.T) {
	t.Parallel()

	f := newFixture("")
	f.provider.errs["generate_profile"] = errors.New("completion timeout")

	resp, err := f.orchestrator.ReceiveMessage(context.Background(), f.userID, "hi")
	if err != nil {
		t.Fatalf("profile failure must not fail the chat turn: %v", err)
	}
	if resp.Response == "" {
		t.Error("reply lost")
	}
}

func TestReceiveMessage_EnqueuesProfileRefresh(t *testing.T) {
	t.Parallel()

	f := newFixture("p")

	for i := 0; i < 5; i++ { // 5 messages * 2 = 10 appended turns
		if _, err := f.orchestrator.ReceiveMessage(context.Background(), f.userID, "msg"); err != nil {
			t.Fatal(err)
		}
	}

	if len(f.jobs.jobs) != 1 {
		t.Fatalf("got %d refresh jobs, want 1", len(f.jobs.jobs))
	}
	job := f.jobs.jobs[0]
	if job.Type != queue.JobTypeProfileRefresh || job.UserID != f.userID {
		t.Errorf("unexpected job: %+v", job)
	}
}

func TestReceiveMessage_RefreshCadenceSurvivesEviction(t *testing.T) {
	t.Parallel()

	f := newFixture("p")

	// 15 messages = 30 appended turns, well past the 20-turn session bound.
	// The cadence must stay one job per 10 appended turns, not one per
	// message once the stored length pins at the bound.
	for i := 0; i < 15; i++ {
		if _, err := f.orchestrator.ReceiveMessage(context.Background(), f.userID, "msg"); err != nil {
			t.Fatal(err)
		}
	}

	if len(f.jobs.jobs) != 3 {
		t.Fatalf("got %d refresh jobs after 15 messages, want 3", len(f.jobs.jobs))
	}
}

func TestExecuteAction_AddMeal(t *testing.T) {
	t.Parallel()

	f := newFixture("p")
	carbs := 40.0
	action := models.NewMealAction(models.MealActionData{Name: "Oatmeal", Calories: 350, Carbo: &carbs})

	if err := f.orchestrator.ExecuteAction(context.Background(), f.userID, &action); err != nil {
		t.Fatalf("ExecuteAction failed: %v", err)
	}
	if len(f.meals.created) != 1 {
		t.Fatalf("got %d meals, want 1", len(f.meals.created))
	}
	meal := f.meals.created[0]
	if meal.Name != "Oatmeal" || meal.Calories != 350 || meal.UserID != f.userID {
		t.Errorf("unexpected meal: %+v", meal)
	}
	if meal.Carbs == nil || *meal.Carbs != 40.0 {
		t.Errorf("Carbs = %v, want 40", meal.Carbs)
	}
}

func TestExecuteAction_AddWorkoutWithTimestamp(t *testing.T) {
	t.Parallel()

	f := newFixture("p")
	duration := 30
	when := time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)
	action := models.NewWorkoutAction(models.WorkoutActionData{Name: "Morning run", DurationInMinutes: &duration})
	action.Timestamp = &when

	if err := f.orchestrator.ExecuteAction(context.Background(), f.userID, &action); err != nil {
		t.Fatalf("ExecuteAction failed: %v", err)
	}
	if len(f.exercises.created) != 1 {
		t.Fatalf("got %d exercises, want 1", len(f.exercises.created))
	}
	exercise := f.exercises.created[0]
	if !exercise.Timestamp.Equal(when) {
		t.Errorf("Timestamp = %v, want embedded %v", exercise.Timestamp, when)
	}
	if exercise.DurationMinutes == nil || *exercise.DurationMinutes != 30 {
		t.Errorf("DurationMinutes = %v, want 30", exercise.DurationMinutes)
	}
}

func TestExecuteAction_InvalidAction(t *testing.T) {
	t.Parallel()

	f := newFixture("p")

	tests := []struct {
		name   string
		action models.RecommendationAction
	}{
		{
			name:   "unknown tag",
			action: models.RecommendationAction{Type: "ADD_SLEEP"},
		},
		{
			name:   "missing payload",
			action: models.RecommendationAction{Type: models.ActionAddMeal},
		},
		{
			name: "mismatched payload",
			action: models.RecommendationAction{
				Type:        models.ActionAddWorkout,
				MealData:    &models.MealActionData{Name: "x"},
				WorkoutData: &models.WorkoutActionData{Name: "y"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			action := tt.action
			if err := f.orchestrator.ExecuteAction(context.Background(), f.userID, &action); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestExecuteAction_PersistenceFailure(t *testing.T) {
	t.Parallel()

	f := newFixture("p")
	f.exercises.err = errors.New("db down")
	duration := 20
	action := models.NewWorkoutAction(models.WorkoutActionData{Name: "HIIT", DurationInMinutes: &duration})

	if err := f.orchestrator.ExecuteAction(context.Background(), f.userID, &action); err == nil {
		t.Fatal("persistence failure must surface as an error")
	}
}

func TestClearHistory(t *testing.T) {
	t.Parallel()

	f := newFixture("p")
	if _, err := f.orchestrator.ReceiveMessage(context.Background(), f.userID, "hi"); err != nil {
		t.Fatal(err)
	}

	f.orchestrator.ClearHistory(f.userID)
	if got := f.orchestrator.sessions.TurnCount(f.userID); got != 0 {
		t.Errorf("TurnCount after ClearHistory = %d, want 0", got)
	}
}

func TestTrimResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		maxWords int
		want     string
	}{
		{
			name:     "under cap unchanged",
			input:    "short reply",
			maxWords: 5,
			want:     "short reply",
		},
		{
			name:     "exactly at cap unchanged",
			input:    "one two three",
			maxWords: 3,
			want:     "one two three",
		},
		{
			name:     "over cap truncated",
			input:    "one two three four",
			maxWords: 3,
			want:     "one two three …",
		},
		{
			name:     "empty",
			input:    "",
			maxWords: 3,
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := TrimResponse(tt.input, tt.maxWords); got != tt.want {
				t.Errorf("TrimResponse(%q, %d) = %q, want %q", tt.input, tt.maxWords, got, tt.want)
			}
		})
	}
}

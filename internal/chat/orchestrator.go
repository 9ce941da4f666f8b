package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vitalog/vitalog-api/internal/database"
	"github.com/vitalog/vitalog-api/internal/models"
	"github.com/vitalog/vitalog-api/internal/queue"
	"github.com/vitalog/vitalog-api/internal/services/ai"
)

const (
	// MaxResponseWords is the hard cap on assistant reply length. The prompt
	// asks the model to stay under it; this truncation is the authoritative
	// post-condition.
	MaxResponseWords = 120

	// ellipsis marks a truncated reply
	ellipsis = " …"

	chatMaxTokens       = 300
	actionTemperature   = 0.3
	actionMaxTokens     = 400
	profileRefreshEvery = 10
)

// Response is the result of one chat turn. Actions is nil unless the message
// asked for a recommendation and generation succeeded; it is strictly
// additive to the reply.
type Response struct {
	Response string                        `json:"response"`
	Actions  []models.RecommendationAction `json:"actions"`
}

type jobEnqueuer interface {
	Enqueue(ctx context.Context, job *queue.Job) error
}

// Orchestrator coordinates a chat turn: session continuity, profile
// injection, completion, response trimming, intent detection, and
// recommendation action generation.
type Orchestrator struct {
	provider   ai.Provider
	builder    *ai.PromptBuilder
	classifier *ai.IntentClassifier
	sessions   *Store
	profiles   *ProfileService
	users      database.UserRepositoryInterface
	meals      database.MealRepositoryInterface
	exercises  database.ExerciseRepositoryInterface
	jobs       jobEnqueuer
	logger     *zap.Logger
	now        func() time.Time
}

// NewOrchestrator creates a chat orchestrator. jobs may be nil; profile
// refresh jobs are then skipped.
func NewOrchestrator(
	provider ai.Provider,
	builder *ai.PromptBuilder,
	classifier *ai.IntentClassifier,
	sessions *Store,
	profiles *ProfileService,
	users database.UserRepositoryInterface,
	meals database.MealRepositoryInterface,
	exercises database.ExerciseRepositoryInterface,
	jobs jobEnqueuer,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		provider:   provider,
		builder:    builder,
		classifier: classifier,
		sessions:   sessions,
		profiles:   profiles,
		users:      users,
		meals:      meals,
		exercises:  exercises,
		jobs:       jobs,
		logger:     logger,
		now:        time.Now,
	}
}

// ReceiveMessage runs one full chat turn for a user and returns the reply
// with any recommendation actions.
func (o *Orchestrator) ReceiveMessage(ctx context.Context, userID uuid.UUID, prompt string) (*Response, error) {
	user, err := o.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile := o.ensureProfile(ctx, user)

	history := o.sessions.Snapshot(userID)
	messages := o.builder.ChatMessages(profile, turnsToMessages(history), prompt)

	reply, err := o.provider.Complete(ctx, messages, ai.Options{
		Operation: "chat",
		MaxTokens: chatMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	reply = TrimResponse(reply, MaxResponseWords)

	o.sessions.Append(userID, ai.RoleUser, prompt)
	o.sessions.Append(userID, ai.RoleAssistant, reply)
	o.maybeEnqueueProfileRefresh(ctx, userID)

	// Classification and action generation are best-effort: the reply is
	// already computed and must not be affected by failures from here on.
	actions := o.generateActions(ctx, o.classifier.Classify(ctx, prompt), profile, userID, prompt)

	return &Response{Response: reply, Actions: actions}, nil
}

// ensureProfile returns the freshest profile text, synchronously generating
// one when the user has none and this is the first turn of the session.
func (o *Orchestrator) ensureProfile(ctx context.Context, user *models.User) string {
	if user.Profile != nil && *user.Profile != "" {
		return *user.Profile
	}
	if o.sessions.TurnCount(user.ID) > 0 {
		return ""
	}

	profile, err := o.profiles.Generate(ctx, user.ID)
	if err != nil {
		if o.logger != nil {
			o.logger.Warn("initial profile generation failed",
				zap.String("user_id", user.ID.String()),
				zap.Error(err),
			)
		}
		return ""
	}
	return profile
}

// generateActions turns a detected intent into one-tap actions. Any failure
// yields nil actions, never an error.
func (o *Orchestrator) generateActions(ctx context.Context, intent ai.Intent, profile string, userID uuid.UUID, prompt string) []models.RecommendationAction {
	var (
		messages []ai.Message
		parse    func(string) ([]models.RecommendationAction, error)
	)

	switch intent {
	case ai.IntentWorkout:
		messages = o.builder.ChatWorkoutActionMessages(profile, prompt)
		parse = func(raw string) ([]models.RecommendationAction, error) {
			items, err := ai.ParseWorkoutActions(raw)
			if err != nil {
				return nil, err
			}
			actions := make([]models.RecommendationAction, 0, len(items))
			for _, item := range items {
				actions = append(actions, models.NewWorkoutAction(item))
			}
			return actions, nil
		}
	case ai.IntentMeal:
		messages = o.builder.ChatMealActionMessages(profile, prompt)
		parse = func(raw string) ([]models.RecommendationAction, error) {
			items, err := ai.ParseMealActions(raw)
			if err != nil {
				return nil, err
			}
			actions := make([]models.RecommendationAction, 0, len(items))
			for _, item := range items {
				actions = append(actions, models.NewMealAction(item))
			}
			return actions, nil
		}
	default:
		return nil
	}

	content, err := o.provider.Complete(ctx, messages, ai.Options{
		Operation:   "generate_chat_actions",
		Temperature: ai.Temperature(actionTemperature),
		MaxTokens:   actionMaxTokens,
	})
	if err != nil {
		o.logActionFailure(userID, intent, err)
		return nil
	}

	actions, err := parse(content)
	if err != nil {
		o.logActionFailure(userID, intent, err)
		return nil
	}
	return actions
}

func (o *Orchestrator) logActionFailure(userID uuid.UUID, intent ai.Intent, err error) {
	if o.logger == nil {
		return
	}
	o.logger.Warn("chat action generation failed",
		zap.String("user_id", userID.String()),
		zap.String("intent", string(intent)),
		zap.Error(err),
	)
}

// maybeEnqueueProfileRefresh schedules a background profile rebuild every
// profileRefreshEvery appended turns. The cumulative count keeps the cadence
// once eviction pins the stored length at the session bound. Best-effort.
func (o *Orchestrator) maybeEnqueueProfileRefresh(ctx context.Context, userID uuid.UUID) {
	if o.jobs == nil {
		return
	}
	if o.sessions.AppendedTurns(userID)%profileRefreshEvery != 0 {
		return
	}

	job := queue.NewJob(queue.JobTypeProfileRefresh, userID)
	if err := o.jobs.Enqueue(ctx, job); err != nil && o.logger != nil {
		o.logger.Warn("failed to enqueue profile refresh",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
	}
}

// ExecuteAction persists a previously returned recommendation action as a
// meal or exercise record. Unknown tags and missing payloads are client
// errors surfaced as validation failures.
func (o *Orchestrator) ExecuteAction(ctx context.Context, userID uuid.UUID, action *models.RecommendationAction) error {
	if err := action.Validate(); err != nil {
		return err
	}

	timestamp := o.now()
	if action.Timestamp != nil {
		timestamp = *action.Timestamp
	}

	switch action.Type {
	case models.ActionAddWorkout:
		exercise := &models.Exercise{
			UserID:          userID,
			Name:            action.WorkoutData.Name,
			Timestamp:       timestamp,
			DurationMinutes: action.WorkoutData.DurationInMinutes,
			CaloriesBurnt:   action.WorkoutData.CaloriesBurnt,
		}
		if action.WorkoutData.Description != "" {
			desc := action.WorkoutData.Description
			exercise.Description = &desc
		}
		if err := o.exercises.Create(ctx, exercise); err != nil {
			return fmt.Errorf("failed to record workout: %w", err)
		}
	case models.ActionAddMeal:
		meal := &models.Meal{
			UserID:    userID,
			Name:      action.MealData.Name,
			Timestamp: timestamp,
			Calories:  action.MealData.Calories,
			Carbs:     action.MealData.Carbo,
			Protein:   action.MealData.Protein,
			Fat:       action.MealData.Fat,
		}
		if err := o.meals.Create(ctx, meal); err != nil {
			return fmt.Errorf("failed to record meal: %w", err)
		}
	}

	return nil
}

// ClearHistory drops the user's conversation session. Idempotent.
func (o *Orchestrator) ClearHistory(userID uuid.UUID) {
	o.sessions.Clear(userID)
}

// TrimResponse caps a reply at maxWords words, appending an ellipsis when
// truncation happens.
func TrimResponse(text string, maxWords int) string {
	words := strings.Fields(text)
	if len(words) <= maxWords {
		return text
	}
	return strings.Join(words[:maxWords], " ") + ellipsis
}

func turnsToMessages(turns []Turn) []ai.Message {
	if len(turns) == 0 {
		return nil
	}
	messages := make([]ai.Message, 0, len(turns))
	for _, turn := range turns {
		messages = append(messages, ai.Message{Role: turn.Role, Content: turn.Content})
	}
	return messages
}

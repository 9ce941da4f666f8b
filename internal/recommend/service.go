package recommend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vitalog/vitalog-api/internal/database"
	"github.com/vitalog/vitalog-api/internal/models"
	"github.com/vitalog/vitalog-api/internal/services/ai"
)

const (
	generateTemperature   = 0.3
	regenerateTemperature = 0.7
	generateMaxTokens     = 1000
	regenerateMaxTokens   = 1500

	// defaultAvailableMinutes is assumed when the client does not say how
	// long they have for a workout
	defaultAvailableMinutes = 30

	// ParseFailureReasoning is the user-facing reasoning on a structural
	// parse failure. The fallback set is never cached.
	ParseFailureReasoning = "Unable to parse AI response. Please try again."
)

// Service generates structured meal and workout recommendations and serves
// them through the per-user TTL cache.
type Service struct {
	provider     ai.Provider
	builder      *ai.PromptBuilder
	cache        *Cache
	users        database.UserRepositoryInterface
	meals        database.MealRepositoryInterface
	exercises    database.ExerciseRepositoryInterface
	measurements database.MeasurementRepositoryInterface
	logger       *zap.Logger
	now          func() time.Time
}

// NewService creates a recommendation service
func NewService(
	provider ai.Provider,
	builder *ai.PromptBuilder,
	cache *Cache,
	users database.UserRepositoryInterface,
	meals database.MealRepositoryInterface,
	exercises database.ExerciseRepositoryInterface,
	measurements database.MeasurementRepositoryInterface,
	logger *zap.Logger,
) *Service {
	return &Service{
		provider:     provider,
		builder:      builder,
		cache:        cache,
		users:        users,
		meals:        meals,
		exercises:    exercises,
		measurements: measurements,
		logger:       logger,
		now:          time.Now,
	}
}

// MealGenerationInput carries the client-supplied knobs for meal generation.
// Zero values mean "decide for me": At defaults to now, MealType to the
// hour-appropriate meal.
type MealGenerationInput struct {
	At       time.Time
	MealType models.MealType
	Avoid    []models.RecommendedMeal
}

// WorkoutGenerationInput carries the client-supplied knobs for workout
// generation. Zero values default to now, 30 available minutes, and AUTO
// intensity.
type WorkoutGenerationInput struct {
	At                 time.Time
	AvailableMinutes   int
	PreferredIntensity models.IntensityLevel
	Avoid              []models.RecommendedWorkout
}

// MealRecommendations returns the cached set when fresh, generating a new
// one on a miss.
func (s *Service) MealRecommendations(ctx context.Context, userID uuid.UUID) (*models.MealRecommendationSet, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if set, ok := s.cache.GetMeal(user); ok {
		return set, nil
	}

	return s.generateMeal(ctx, user, MealGenerationInput{})
}

// GenerateMealRecommendations always generates a fresh set, steering away
// from the supplied prior recommendations, and writes through to the cache.
func (s *Service) GenerateMealRecommendations(ctx context.Context, userID uuid.UUID, in MealGenerationInput) (*models.MealRecommendationSet, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.generateMeal(ctx, user, in)
}

func (s *Service) generateMeal(ctx context.Context, user *models.User, in MealGenerationInput) (*models.MealRecommendationSet, error) {
	recentMeals, err := s.meals.ListRecentByUserID(ctx, user.ID, ai.MaxActivityEntriesInPrompt)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent meals: %w", err)
	}
	measurement, err := s.measurements.LatestByUserID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest measurement: %w", err)
	}

	at := in.At
	if at.IsZero() {
		at = s.now()
	}

	messages := s.builder.MealRecommendationMessages(ai.MealPromptInput{
		Profile:           profileText(user),
		RecentMeals:       recentMeals,
		LatestMeasurement: measurement,
		CurrentTime:       at,
		MealType:          in.MealType.Resolve(at),
		Avoid:             in.Avoid,
	})

	content, err := s.provider.Complete(ctx, messages, completionOptions("generate_meal_recommendations", len(in.Avoid) > 0))
	if err != nil {
		return nil, fmt.Errorf("failed to generate meal recommendations: %w", err)
	}

	set, err := ai.ParseMealSet(content)
	if err != nil {
		s.logParseFailure(models.RecommendationKindMeal, user.ID, err)
		return &models.MealRecommendationSet{
			Recommendations: []models.RecommendedMeal{},
			Reasoning:       ParseFailureReasoning,
		}, nil
	}

	if err := s.cache.PutMeal(ctx, user.ID, set); err != nil {
		// serve the generated set even when the cache write fails
		if s.logger != nil {
			s.logger.Warn("failed to cache meal recommendations",
				zap.String("user_id", user.ID.String()),
				zap.Error(err),
			)
		}
	}

	return set, nil
}

// WorkoutRecommendations returns the cached set when fresh, generating a new
// one on a miss.
func (s *Service) WorkoutRecommendations(ctx context.Context, userID uuid.UUID) (*models.WorkoutRecommendationSet, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if set, ok := s.cache.GetWorkout(user); ok {
		return set, nil
	}

	return s.generateWorkout(ctx, user, WorkoutGenerationInput{})
}

// GenerateWorkoutRecommendations always generates a fresh set, steering away
// from the supplied prior recommendations, and writes through to the cache.
func (s *Service) GenerateWorkoutRecommendations(ctx context.Context, userID uuid.UUID, in WorkoutGenerationInput) (*models.WorkoutRecommendationSet, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.generateWorkout(ctx, user, in)
}

func (s *Service) generateWorkout(ctx context.Context, user *models.User, in WorkoutGenerationInput) (*models.WorkoutRecommendationSet, error) {
	recentExercises, err := s.exercises.ListRecentByUserID(ctx, user.ID, ai.MaxActivityEntriesInPrompt)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent exercises: %w", err)
	}
	measurement, err := s.measurements.LatestByUserID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest measurement: %w", err)
	}

	at := in.At
	if at.IsZero() {
		at = s.now()
	}
	minutes := in.AvailableMinutes
	if minutes <= 0 {
		minutes = defaultAvailableMinutes
	}
	intensity := in.PreferredIntensity
	if intensity == "" {
		intensity = models.IntensityAuto
	}

	messages := s.builder.WorkoutRecommendationMessages(ai.WorkoutPromptInput{
		Profile:            profileText(user),
		RecentExercises:    recentExercises,
		LatestMeasurement:  measurement,
		CurrentTime:        at,
		AvailableMinutes:   minutes,
		PreferredIntensity: intensity,
		Avoid:              in.Avoid,
	})

	content, err := s.provider.Complete(ctx, messages, completionOptions("generate_workout_recommendations", len(in.Avoid) > 0))
	if err != nil {
		return nil, fmt.Errorf("failed to generate workout recommendations: %w", err)
	}

	set, err := ai.ParseWorkoutSet(content)
	if err != nil {
		s.logParseFailure(models.RecommendationKindWorkout, user.ID, err)
		return &models.WorkoutRecommendationSet{
			Recommendations: []models.RecommendedWorkout{},
			Reasoning:       ParseFailureReasoning,
		}, nil
	}

	if err := s.cache.PutWorkout(ctx, user.ID, set); err != nil {
		if s.logger != nil {
			s.logger.Warn("failed to cache workout recommendations",
				zap.String("user_id", user.ID.String()),
				zap.Error(err),
			)
		}
	}

	return set, nil
}

func (s *Service) logParseFailure(kind models.RecommendationKind, userID uuid.UUID, err error) {
	if s.logger == nil {
		return
	}
	fields := []zap.Field{
		zap.String("kind", string(kind)),
		zap.String("user_id", userID.String()),
		zap.Error(err),
	}
	var pe *ai.ParseError
	if errors.As(err, &pe) {
		fields = append(fields, zap.String("raw_response", ai.SanitizeResponse(pe.Raw, true)))
	}
	s.logger.Warn("recommendation parse failure", fields...)
}

// completionOptions picks temperature and token budget: regeneration runs
// hotter so repeated requests actually diverge.
func completionOptions(operation string, regenerate bool) ai.Options {
	opts := ai.Options{
		Operation:   operation,
		Temperature: ai.Temperature(generateTemperature),
		MaxTokens:   generateMaxTokens,
		JSONObject:  true,
	}
	if regenerate {
		opts.Temperature = ai.Temperature(regenerateTemperature)
		opts.MaxTokens = regenerateMaxTokens
	}
	return opts
}

func profileText(user *models.User) string {
	if user.Profile == nil {
		return ""
	}
	return *user.Profile
}

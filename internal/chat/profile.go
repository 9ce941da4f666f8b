package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vitalog/vitalog-api/internal/database"
	"github.com/vitalog/vitalog-api/internal/services/ai"
)

const (
	profileTemperature = 0.2
	profileMaxTokens   = 400

	profileActivityWindow = 30
)

// ProfileService generates the free-text user profile from logged activity
// and persists it on the user record.
type ProfileService struct {
	provider     ai.Provider
	builder      *ai.PromptBuilder
	users        database.UserRepositoryInterface
	meals        database.MealRepositoryInterface
	exercises    database.ExerciseRepositoryInterface
	measurements database.MeasurementRepositoryInterface
	logger       *zap.Logger
}

// NewProfileService creates a profile service
func NewProfileService(
	provider ai.Provider,
	builder *ai.PromptBuilder,
	users database.UserRepositoryInterface,
	meals database.MealRepositoryInterface,
	exercises database.ExerciseRepositoryInterface,
	measurements database.MeasurementRepositoryInterface,
	logger *zap.Logger,
) *ProfileService {
	return &ProfileService{
		provider:     provider,
		builder:      builder,
		users:        users,
		meals:        meals,
		exercises:    exercises,
		measurements: measurements,
		logger:       logger,
	}
}

// Generate builds a fresh profile from the user's recent activity, persists
// it, and returns the new text.
func (s *ProfileService) Generate(ctx context.Context, userID uuid.UUID) (string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}

	meals, err := s.meals.ListRecentByUserID(ctx, userID, profileActivityWindow)
	if err != nil {
		return "", fmt.Errorf("failed to load meals for profile: %w", err)
	}
	exercises, err := s.exercises.ListRecentByUserID(ctx, userID, profileActivityWindow)
	if err != nil {
		return "", fmt.Errorf("failed to load exercises for profile: %w", err)
	}
	measurement, err := s.measurements.LatestByUserID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to load measurement for profile: %w", err)
	}

	messages := s.builder.ProfileMessages(ai.ProfilePromptInput{
		Age:               user.Age(time.Now()),
		Meals:             meals,
		Exercises:         exercises,
		LatestMeasurement: measurement,
	})

	profile, err := s.provider.Complete(ctx, messages, ai.Options{
		Operation:   "generate_profile",
		Temperature: ai.Temperature(profileTemperature),
		MaxTokens:   profileMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate profile: %w", err)
	}

	if err := s.users.UpdateProfile(ctx, userID, profile); err != nil {
		return "", fmt.Errorf("failed to save profile: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("profile generated",
			zap.String("user_id", userID.String()),
			zap.Int("profile_length", len(profile)),
		)
	}

	return profile, nil
}

package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vitalog/vitalog-api/internal/models"
)

// UserRepositoryInterface defines the interface for user repository operations
// This interface enables better testability by allowing mock implementations
type UserRepositoryInterface interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, profile string) error
	UpdateRecommendationCache(ctx context.Context, id uuid.UUID, kind models.RecommendationKind, payload *string, expiry *time.Time) error
}

// MealRepositoryInterface defines the interface for meal repository operations
type MealRepositoryInterface interface {
	Create(ctx context.Context, meal *models.Meal) error
	ListRecentByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Meal, error)
}

// ExerciseRepositoryInterface defines the interface for exercise repository operations
type ExerciseRepositoryInterface interface {
	Create(ctx context.Context, exercise *models.Exercise) error
	ListRecentByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Exercise, error)
}

// MeasurementRepositoryInterface defines the interface for measurement repository operations
type MeasurementRepositoryInterface interface {
	LatestByUserID(ctx context.Context, userID uuid.UUID) (*models.Measurement, error)
}

// Ensure concrete types implement the interfaces
var (
	_ UserRepositoryInterface        = (*UserRepository)(nil)
	_ MealRepositoryInterface        = (*MealRepository)(nil)
	_ ExerciseRepositoryInterface    = (*ExerciseRepository)(nil)
	_ MeasurementRepositoryInterface = (*MeasurementRepository)(nil)
)

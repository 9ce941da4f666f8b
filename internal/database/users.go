package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vitalog/vitalog-api/internal/models"
)

// UserRepository handles user database operations
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, name, birth_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	now := time.Now()
	err := r.db.QueryRowContext(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		user.BirthDate,
		now,
		now,
	).Scan(&user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := &models.User{}
	query := `
		SELECT id, email, name, birth_date, profile,
		       meal_recommendations_cache, meal_cache_expiry,
		       workout_recommendations_cache, workout_cache_expiry,
		       created_at, updated_at
		FROM users
		WHERE id = $1
	`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.BirthDate,
		&user.Profile,
		&user.MealRecommendationsCache,
		&user.MealCacheExpiry,
		&user.WorkoutRecommendationsCache,
		&user.WorkoutCacheExpiry,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// UpdateProfile writes the generated profile text for a user
func (r *UserRepository) UpdateProfile(ctx context.Context, id uuid.UUID, profile string) error {
	query := `
		UPDATE users SET profile = $2, updated_at = $3
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, profile, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user not found: %w", sql.ErrNoRows)
	}

	return nil
}

// UpdateRecommendationCache overwrites one recommendation cache slot for a
// user. Last writer wins; concurrent writers are not reconciled.
func (r *UserRepository) UpdateRecommendationCache(ctx context.Context, id uuid.UUID, kind models.RecommendationKind, payload *string, expiry *time.Time) error {
	var query string
	switch kind {
	case models.RecommendationKindMeal:
		query = `
			UPDATE users SET meal_recommendations_cache = $2, meal_cache_expiry = $3, updated_at = $4
			WHERE id = $1
		`
	case models.RecommendationKindWorkout:
		query = `
			UPDATE users SET workout_recommendations_cache = $2, workout_cache_expiry = $3, updated_at = $4
			WHERE id = $1
		`
	default:
		return fmt.Errorf("unknown recommendation kind: %q", kind)
	}

	result, err := r.db.ExecContext(ctx, query, id, payload, expiry, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update recommendation cache: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user not found: %w", sql.ErrNoRows)
	}

	return nil
}

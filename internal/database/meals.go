package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vitalog/vitalog-api/internal/models"
)

// MealRepository handles meal database operations
type MealRepository struct {
	db *DB
}

// NewMealRepository creates a new meal repository
func NewMealRepository(db *DB) *MealRepository {
	return &MealRepository{db: db}
}

// Create creates a new meal record
func (r *MealRepository) Create(ctx context.Context, meal *models.Meal) error {
	query := `
		INSERT INTO meals (id, user_id, name, timestamp, calories, carbs, protein, fat, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`

	if meal.ID == uuid.Nil {
		meal.ID = uuid.New()
	}
	if meal.Timestamp.IsZero() {
		meal.Timestamp = time.Now()
	}

	err := r.db.QueryRowContext(ctx, query,
		meal.ID,
		meal.UserID,
		meal.Name,
		meal.Timestamp,
		meal.Calories,
		meal.Carbs,
		meal.Protein,
		meal.Fat,
		time.Now(),
	).Scan(&meal.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create meal: %w", err)
	}

	return nil
}

// ListRecentByUserID retrieves the most recent meals for a user, newest first
func (r *MealRepository) ListRecentByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Meal, error) {
	query := `
		SELECT id, user_id, name, timestamp, calories, carbs, protein, fat, created_at
		FROM meals
		WHERE user_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list meals: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			_ = closeErr
		}
	}()

	var meals []*models.Meal
	for rows.Next() {
		meal := &models.Meal{}
		err := rows.Scan(
			&meal.ID,
			&meal.UserID,
			&meal.Name,
			&meal.Timestamp,
			&meal.Calories,
			&meal.Carbs,
			&meal.Protein,
			&meal.Fat,
			&meal.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meal: %w", err)
		}
		meals = append(meals, meal)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate meals: %w", err)
	}

	return meals, nil
}

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vitalog/vitalog-api/internal/models"
)

// ExerciseRepository handles exercise database operations
type ExerciseRepository struct {
	db *DB
}

// NewExerciseRepository creates a new exercise repository
func NewExerciseRepository(db *DB) *ExerciseRepository {
	return &ExerciseRepository{db: db}
}

// Create creates a new exercise record
func (r *ExerciseRepository) Create(ctx context.Context, exercise *models.Exercise) error {
	query := `
		INSERT INTO exercises (id, user_id, name, description, timestamp, duration_minutes, calories_burnt, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`

	if exercise.ID == uuid.Nil {
		exercise.ID = uuid.New()
	}
	if exercise.Timestamp.IsZero() {
		exercise.Timestamp = time.Now()
	}

	err := r.db.QueryRowContext(ctx, query,
		exercise.ID,
		exercise.UserID,
		exercise.Name,
		exercise.Description,
		exercise.Timestamp,
		exercise.DurationMinutes,
		exercise.CaloriesBurnt,
		time.Now(),
	).Scan(&exercise.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create exercise: %w", err)
	}

	return nil
}

// ListRecentByUserID retrieves the most recent exercises for a user, newest first
func (r *ExerciseRepository) ListRecentByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Exercise, error) {
	query := `
		SELECT id, user_id, name, description, timestamp, duration_minutes, calories_burnt, created_at
		FROM exercises
		WHERE user_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list exercises: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			_ = closeErr
		}
	}()

	var exercises []*models.Exercise
	for rows.Next() {
		exercise := &models.Exercise{}
		err := rows.Scan(
			&exercise.ID,
			&exercise.UserID,
			&exercise.Name,
			&exercise.Description,
			&exercise.Timestamp,
			&exercise.DurationMinutes,
			&exercise.CaloriesBurnt,
			&exercise.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan exercise: %w", err)
		}
		exercises = append(exercises, exercise)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate exercises: %w", err)
	}

	return exercises, nil
}

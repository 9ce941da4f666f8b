package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vitalog/vitalog-api/internal/models"
)

// MeasurementRepository handles body measurement database operations
type MeasurementRepository struct {
	db *DB
}

// NewMeasurementRepository creates a new measurement repository
func NewMeasurementRepository(db *DB) *MeasurementRepository {
	return &MeasurementRepository{db: db}
}

// Create creates a new measurement record
func (r *MeasurementRepository) Create(ctx context.Context, m *models.Measurement) error {
	query := `
		INSERT INTO measurements (id, user_id, weight_kg, height_cm, timestamp, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}

	err := r.db.QueryRowContext(ctx, query,
		m.ID,
		m.UserID,
		m.WeightKG,
		m.HeightCM,
		m.Timestamp,
		time.Now(),
	).Scan(&m.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create measurement: %w", err)
	}

	return nil
}

// LatestByUserID retrieves the most recent measurement for a user, or nil if none
func (r *MeasurementRepository) LatestByUserID(ctx context.Context, userID uuid.UUID) (*models.Measurement, error) {
	query := `
		SELECT id, user_id, weight_kg, height_cm, timestamp, created_at
		FROM measurements
		WHERE user_id = $1
		ORDER BY timestamp DESC
		LIMIT 1
	`

	m := &models.Measurement{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&m.ID,
		&m.UserID,
		&m.WeightKG,
		&m.HeightCM,
		&m.Timestamp,
		&m.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest measurement: %w", err)
	}

	return m, nil
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Measurement represents a logged body measurement
type Measurement struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	WeightKG  float64   `json:"weight_kg"`
	HeightCM  *float64  `json:"height_cm,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	CreatedAt time.Time `json:"created_at"`
}

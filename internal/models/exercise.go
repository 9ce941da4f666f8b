package models

import (
	"time"

	"github.com/google/uuid"
)

// Exercise represents a logged workout record
type Exercise struct {
	ID              uuid.UUID `json:"id"`
	UserID          uuid.UUID `json:"user_id"`
	Name            string    `json:"name"`
	Description     *string   `json:"description,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
	DurationMinutes *int      `json:"duration_minutes,omitempty"`
	CaloriesBurnt   *int      `json:"calories_burnt,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

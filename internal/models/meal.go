package models

import (
	"time"

	"github.com/google/uuid"
)

// Meal represents a logged meal record
type Meal struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
	Calories  int       `json:"calories"`
	Carbs     *float64  `json:"carbs,omitempty"`
	Protein   *float64  `json:"protein,omitempty"`
	Fat       *float64  `json:"fat,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a user in the system. The profile column holds a free-text
// nutrition/fitness narrative generated by the assistant; the recommendation
// cache columns hold the last generated set per kind plus its expiry.
type User struct {
	ID        uuid.UUID  `json:"id"`
	Email     string     `json:"email"`
	Name      *string    `json:"name,omitempty"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
	Profile   *string    `json:"profile,omitempty"`

	MealRecommendationsCache    *string    `json:"-"`
	MealCacheExpiry             *time.Time `json:"-"`
	WorkoutRecommendationsCache *string    `json:"-"`
	WorkoutCacheExpiry          *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Age returns the user's age in whole years at the given time, or 0 if the
// birth date is unknown.
func (u *User) Age(now time.Time) int {
	if u.BirthDate == nil {
		return 0
	}
	years := now.Year() - u.BirthDate.Year()
	anniversary := u.BirthDate.AddDate(years, 0, 0)
	if anniversary.After(now) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

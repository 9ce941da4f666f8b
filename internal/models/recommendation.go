package models

import (
	"fmt"
	"time"
)

// RecommendationKind selects which cached recommendation slot to use
type RecommendationKind string

const (
	// RecommendationKindMeal is the meal recommendation slot
	RecommendationKindMeal RecommendationKind = "meal"
	// RecommendationKindWorkout is the workout recommendation slot
	RecommendationKindWorkout RecommendationKind = "workout"
)

// MealType names which meal a recommendation request targets
type MealType string

const (
	MealTypeBreakfast MealType = "BREAKFAST"
	MealTypeLunch     MealType = "LUNCH"
	MealTypeDinner    MealType = "DINNER"
	MealTypeSnack     MealType = "SNACK"
	// MealTypeAuto derives the meal type from the hour of day
	MealTypeAuto MealType = "AUTO"
)

// Resolve maps AUTO (or an unset type) to the meal matching the hour of at.
func (m MealType) Resolve(at time.Time) MealType {
	if m != "" && m != MealTypeAuto {
		return m
	}
	hour := at.Hour()
	switch {
	case hour < 10:
		return MealTypeBreakfast
	case hour < 15:
		return MealTypeLunch
	case hour < 19:
		return MealTypeDinner
	default:
		return MealTypeSnack
	}
}

// IntensityLevel is the requested workout intensity
type IntensityLevel string

const (
	IntensityLow    IntensityLevel = "LOW"
	IntensityMedium IntensityLevel = "MEDIUM"
	IntensityHigh   IntensityLevel = "HIGH"
	// IntensityAuto lets the model pick an intensity for the time of day
	IntensityAuto IntensityLevel = "AUTO"
)

// RecommendedMeal is one meal suggestion inside a MealRecommendationSet
type RecommendedMeal struct {
	Name              string   `json:"name"`
	Description       string   `json:"description"`
	EstimatedCalories int      `json:"estimatedCalories"`
	EstimatedCarbs    int      `json:"estimatedCarbs"`
	EstimatedProtein  int      `json:"estimatedProtein"`
	EstimatedFat      int      `json:"estimatedFat"`
	PreparationTime   string   `json:"preparationTime"`
	Ingredients       []string `json:"ingredients"`
	SuitabilityReason string   `json:"suitabilityReason"`
}

// MealRecommendationSet is the structured output of a meal recommendation call
type MealRecommendationSet struct {
	Recommendations []RecommendedMeal `json:"recommendations"`
	Reasoning       string            `json:"reasoning"`
	OptimalTime     string            `json:"optimalTime"`
}

// RecommendedExercise is one exercise inside a recommended workout
type RecommendedExercise struct {
	Name            string `json:"name"`
	Type            string `json:"type"` // cardio, strength, flexibility
	Sets            int    `json:"sets"`
	Reps            int    `json:"reps"`
	DurationSeconds int    `json:"durationSeconds"`
	Instructions    string `json:"instructions"`
	Equipment       string `json:"equipment"`
}

// RecommendedWorkout is one workout suggestion inside a WorkoutRecommendationSet
type RecommendedWorkout struct {
	Name                  string                `json:"name"`
	Description           string                `json:"description"`
	DurationMinutes       int                   `json:"durationMinutes"`
	EstimatedCaloriesBurn int                   `json:"estimatedCaloriesBurn"`
	Difficulty            string                `json:"difficulty"`
	Exercises             []RecommendedExercise `json:"exercises"`
	SuitabilityReason     string                `json:"suitabilityReason"`
}

// WorkoutRecommendationSet is the structured output of a workout recommendation call
type WorkoutRecommendationSet struct {
	Recommendations         []RecommendedWorkout `json:"recommendations"`
	Reasoning               string               `json:"reasoning"`
	OptimalTime             string               `json:"optimalTime"`
	IntensityRecommendation string               `json:"intensityRecommendation,omitempty"`
}

// ActionType is the closed set of recommendation action tags
type ActionType string

const (
	// ActionAddWorkout persists the embedded workout data as an exercise record
	ActionAddWorkout ActionType = "ADD_WORKOUT"
	// ActionAddMeal persists the embedded meal data as a meal record
	ActionAddMeal ActionType = "ADD_MEAL"
)

// WorkoutActionData is the compact workout payload carried by a chat-path action
type WorkoutActionData struct {
	Name              string `json:"name"`
	Description       string `json:"description,omitempty"`
	DurationInMinutes *int   `json:"durationInMinutes,omitempty"`
	CaloriesBurnt     *int   `json:"caloriesBurnt,omitempty"`
}

// MealActionData is the compact meal payload carried by a chat-path action
type MealActionData struct {
	Name     string   `json:"name"`
	Calories int      `json:"calories"`
	Carbo    *float64 `json:"carbo,omitempty"`
	Protein  *float64 `json:"protein,omitempty"`
	Fat      *float64 `json:"fat,omitempty"`
}

// RecommendationAction is a user-confirmable instruction to persist a
// generated meal or workout as a logged record. Exactly one payload is set
// and it matches Type.
type RecommendationAction struct {
	Type        ActionType         `json:"type"`
	Title       string             `json:"title"`
	Description string             `json:"description,omitempty"`
	WorkoutData *WorkoutActionData `json:"workoutData,omitempty"`
	MealData    *MealActionData    `json:"mealData,omitempty"`
	Timestamp   *time.Time         `json:"timestamp,omitempty"`
}

// Validate checks the tag/payload coherence invariant.
func (a *RecommendationAction) Validate() error {
	switch a.Type {
	case ActionAddWorkout:
		if a.WorkoutData == nil {
			return fmt.Errorf("action %s requires workoutData", a.Type)
		}
		if a.MealData != nil {
			return fmt.Errorf("action %s must not carry mealData", a.Type)
		}
	case ActionAddMeal:
		if a.MealData == nil {
			return fmt.Errorf("action %s requires mealData", a.Type)
		}
		if a.WorkoutData != nil {
			return fmt.Errorf("action %s must not carry workoutData", a.Type)
		}
	default:
		return fmt.Errorf("unknown action type: %q", a.Type)
	}
	return nil
}

// NewWorkoutAction builds an ADD_WORKOUT action for a chat-path recommendation.
func NewWorkoutAction(data WorkoutActionData) RecommendationAction {
	return RecommendationAction{
		Type:        ActionAddWorkout,
		Title:       "Add recommended workout",
		Description: "Tap to add this workout to your log",
		WorkoutData: &data,
	}
}

// NewMealAction builds an ADD_MEAL action for a chat-path recommendation.
func NewMealAction(data MealActionData) RecommendationAction {
	return RecommendationAction{
		Type:        ActionAddMeal,
		Title:       "Add recommended meal",
		Description: "Tap to add this meal to your log",
		MealData:    &data,
	}
}

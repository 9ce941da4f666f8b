package ai

import (
	"fmt"
	"strings"
	"time"

	"github.com/vitalog/vitalog-api/internal/models"
)

const (
	// MaxActivityEntriesInPrompt caps how many recent meals/exercises are rendered
	MaxActivityEntriesInPrompt = 10

	chatPreamble = `You are a friendly nutrition and fitness assistant for a personal health tracking app.

Style rules:
- Keep every reply under 120 words.
- Use 3-5 short bullet points, or 2-4 plain sentences when bullets do not fit.
- Reply in the same language the user writes in. Never translate unless asked.
- No filler, no disclaimers, no repeating the question back.`

	intentSystem = "You classify chat messages for a health assistant. You output only the classification, nothing else."
)

// PromptBuilder assembles completion message lists. It never calls the
// completion service itself; every method is a pure function of its inputs.
type PromptBuilder struct{}

// NewPromptBuilder creates a new prompt builder
func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

// ChatMessages builds the message list for a regular chat turn: system
// preamble plus optional profile block, then the conversation history as
// role messages, then the new user message.
func (b *PromptBuilder) ChatMessages(profile string, history []Message, userMessage string) []Message {
	systemContent := chatPreamble
	if profile != "" {
		systemContent += "\n\nWhat you know about this user:\n" + profile
	}

	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, Message{Role: RoleSystem, Content: systemContent})
	for _, turn := range history {
		role := turn.Role
		if role != RoleAssistant {
			role = RoleUser
		}
		messages = append(messages, Message{Role: role, Content: turn.Content})
	}
	messages = append(messages, Message{Role: RoleUser, Content: userMessage})

	return messages
}

// IntentMessages builds the classification prompt for a single user message.
func (b *PromptBuilder) IntentMessages(userMessage string) []Message {
	prompt := fmt.Sprintf(`Decide whether the following message asks for a workout recommendation or a meal recommendation.

Respond with exactly one of:
{"intentType":"workout"}
{"intentType":"meal"}
none

Output nothing else. When in doubt, respond none.

Message: %q`, userMessage)

	return []Message{
		{Role: RoleSystem, Content: intentSystem},
		{Role: RoleUser, Content: prompt},
	}
}

// MealPromptInput carries the context for a meal recommendation prompt.
// MealType is expected to be resolved already; AUTO is never rendered.
type MealPromptInput struct {
	Profile           string
	RecentMeals       []*models.Meal
	LatestMeasurement *models.Measurement
	CurrentTime       time.Time
	MealType          models.MealType
	Avoid             []models.RecommendedMeal
}

// MealRecommendationMessages builds the structured meal recommendation prompt.
func (b *PromptBuilder) MealRecommendationMessages(in MealPromptInput) []Message {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Generate 2-3 meal recommendations suitable for %s.\n", strings.ToLower(string(in.MealType))))
	sb.WriteString(fmt.Sprintf("\nCurrent time: %s\n", in.CurrentTime.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Meal type: %s\n", in.MealType))

	writeProfileBlock(&sb, in.Profile)
	writeMealHistory(&sb, in.RecentMeals)
	writeMeasurementBlock(&sb, in.LatestMeasurement)

	if len(in.Avoid) > 0 {
		sb.WriteString("\nThe user rejected these recommendations. Suggest something different, with clearly different main ingredients:\n")
		for _, m := range in.Avoid {
			sb.WriteString(fmt.Sprintf("- %s (%d kcal)\n", m.Name, m.EstimatedCalories))
		}
	}

	sb.WriteString(`
Respond with a JSON object in exactly this format:
{
  "recommendations": [
    {
      "name": "...",
      "description": "...",
      "estimatedCalories": 0,
      "estimatedCarbs": 0,
      "estimatedProtein": 0,
      "estimatedFat": 0,
      "preparationTime": "...",
      "ingredients": ["..."],
      "suitabilityReason": "..."
    }
  ],
  "reasoning": "...",
  "optimalTime": "..."
}

Pick the optimal time of day for the next meal based on the current time and the user's eating pattern. Return only valid JSON, no prose outside it.`)

	return []Message{
		{Role: RoleSystem, Content: "You are a nutrition expert generating structured meal plans. Respond with valid JSON only."},
		{Role: RoleUser, Content: sb.String()},
	}
}

// WorkoutPromptInput carries the context for a workout recommendation prompt
type WorkoutPromptInput struct {
	Profile            string
	RecentExercises    []*models.Exercise
	LatestMeasurement  *models.Measurement
	CurrentTime        time.Time
	AvailableMinutes   int
	PreferredIntensity models.IntensityLevel
	Avoid              []models.RecommendedWorkout
}

// WorkoutRecommendationMessages builds the structured workout recommendation prompt.
func (b *PromptBuilder) WorkoutRecommendationMessages(in WorkoutPromptInput) []Message {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Generate 2-3 workout recommendations for this user, fitting %d available minutes.\n", in.AvailableMinutes))
	sb.WriteString(fmt.Sprintf("\nCurrent time: %s\n", in.CurrentTime.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Available time: %d minutes\n", in.AvailableMinutes))
	sb.WriteString(fmt.Sprintf("Preferred intensity: %s\n", in.PreferredIntensity))

	writeProfileBlock(&sb, in.Profile)
	writeExerciseHistory(&sb, in.RecentExercises)
	writeMeasurementBlock(&sb, in.LatestMeasurement)

	if len(in.Avoid) > 0 {
		sb.WriteString("\nThe user rejected these recommendations. Suggest something different, with clearly different exercise types:\n")
		for _, w := range in.Avoid {
			sb.WriteString(fmt.Sprintf("- %s (%d min, %s)\n", w.Name, w.DurationMinutes, w.Difficulty))
		}
	}

	sb.WriteString(`
Respond with a JSON object in exactly this format:
{
  "recommendations": [
    {
      "name": "...",
      "description": "...",
      "durationMinutes": 0,
      "estimatedCaloriesBurn": 0,
      "difficulty": "beginner" | "intermediate" | "advanced",
      "exercises": [
        {
          "name": "...",
          "type": "cardio" | "strength" | "flexibility",
          "sets": 0,
          "reps": 0,
          "durationSeconds": 0,
          "instructions": "...",
          "equipment": "..."
        }
      ],
      "suitabilityReason": "..."
    }
  ],
  "reasoning": "...",
  "optimalTime": "...",
  "intensityRecommendation": "..."
}

Pick the optimal time of day for the workout based on the current time and the user's activity pattern. Return only valid JSON, no prose outside it.`)

	return []Message{
		{Role: RoleSystem, Content: "You are a fitness expert generating structured workout plans. Respond with valid JSON only."},
		{Role: RoleUser, Content: sb.String()},
	}
}

// ChatWorkoutActionMessages builds the compact chat-path workout prompt. The
// reply is a bare JSON array so it can be attached to the chat response as
// one-tap actions.
func (b *PromptBuilder) ChatWorkoutActionMessages(profile string, userMessage string) []Message {
	var sb strings.Builder

	sb.WriteString("The user asked for a workout in a chat. Suggest 1-2 workouts they can log with one tap.\n")
	writeProfileBlock(&sb, profile)
	sb.WriteString(fmt.Sprintf("\nUser message: %q\n", userMessage))
	sb.WriteString(`
Respond with a JSON array in exactly this format:
[{"name": "...", "description": "...", "durationInMinutes": 0, "caloriesBurnt": 0}]

Return only the JSON array, no prose outside it.`)

	return []Message{
		{Role: RoleSystem, Content: "You are a fitness expert. Respond with valid JSON only."},
		{Role: RoleUser, Content: sb.String()},
	}
}

// ChatMealActionMessages builds the compact chat-path meal prompt.
func (b *PromptBuilder) ChatMealActionMessages(profile string, userMessage string) []Message {
	var sb strings.Builder

	sb.WriteString("The user asked for a meal suggestion in a chat. Suggest 1-2 meals they can log with one tap.\n")
	writeProfileBlock(&sb, profile)
	sb.WriteString(fmt.Sprintf("\nUser message: %q\n", userMessage))
	sb.WriteString(`
Respond with a JSON array in exactly this format:
[{"name": "...", "calories": 0, "carbo": 0, "protein": 0, "fat": 0}]

Return only the JSON array, no prose outside it.`)

	return []Message{
		{Role: RoleSystem, Content: "You are a nutrition expert. Respond with valid JSON only."},
		{Role: RoleUser, Content: sb.String()},
	}
}

// ProfilePromptInput carries the context for profile generation
type ProfilePromptInput struct {
	Age               int
	Meals             []*models.Meal
	Exercises         []*models.Exercise
	LatestMeasurement *models.Measurement
}

// ProfileMessages builds the profile generation prompt from logged activity.
func (b *PromptBuilder) ProfileMessages(in ProfilePromptInput) []Message {
	var sb strings.Builder

	sb.WriteString("Write a concise free-text profile of this user for a health assistant to use as context.\n")
	if in.Age > 0 {
		sb.WriteString(fmt.Sprintf("\nAge: %d\n", in.Age))
	}
	writeMealHistory(&sb, in.Meals)
	writeExerciseHistory(&sb, in.Exercises)
	writeMeasurementBlock(&sb, in.LatestMeasurement)

	sb.WriteString(`
Cover, in under 150 words of plain prose:
- dietary patterns and typical meal times (derive times from the timestamps above)
- activity level, preferred exercise types, and usual workout times
- anything notable about calorie balance

Write in third person. No headings, no bullet points, no advice.`)

	return []Message{
		{Role: RoleSystem, Content: "You summarize health tracking data into short user profiles."},
		{Role: RoleUser, Content: sb.String()},
	}
}

func writeProfileBlock(sb *strings.Builder, profile string) {
	if profile == "" {
		return
	}
	sb.WriteString("\nUser profile:\n")
	sb.WriteString(profile)
	sb.WriteString("\n")
}

func writeMealHistory(sb *strings.Builder, meals []*models.Meal) {
	if len(meals) == 0 {
		return
	}
	if len(meals) > MaxActivityEntriesInPrompt {
		meals = meals[:MaxActivityEntriesInPrompt]
	}
	sb.WriteString("\nRecent meals (most recent first):\n")
	for _, m := range meals {
		sb.WriteString(fmt.Sprintf("- %s: %s, %d kcal", m.Timestamp.Format("Mon 15:04"), m.Name, m.Calories))
		if m.Protein != nil {
			sb.WriteString(fmt.Sprintf(", %.0fg protein", *m.Protein))
		}
		sb.WriteString("\n")
	}
}

func writeExerciseHistory(sb *strings.Builder, exercises []*models.Exercise) {
	if len(exercises) == 0 {
		return
	}
	if len(exercises) > MaxActivityEntriesInPrompt {
		exercises = exercises[:MaxActivityEntriesInPrompt]
	}
	sb.WriteString("\nRecent exercises (most recent first):\n")
	for _, e := range exercises {
		sb.WriteString(fmt.Sprintf("- %s: %s", e.Timestamp.Format("Mon 15:04"), e.Name))
		if e.DurationMinutes != nil {
			sb.WriteString(fmt.Sprintf(", %d min", *e.DurationMinutes))
		}
		if e.CaloriesBurnt != nil {
			sb.WriteString(fmt.Sprintf(", %d kcal burnt", *e.CaloriesBurnt))
		}
		sb.WriteString("\n")
	}
}

func writeMeasurementBlock(sb *strings.Builder, m *models.Measurement) {
	if m == nil {
		return
	}
	sb.WriteString(fmt.Sprintf("\nLatest measurement (%s): %.1f kg", m.Timestamp.Format("2006-01-02"), m.WeightKG))
	if m.HeightCM != nil {
		sb.WriteString(fmt.Sprintf(", %.0f cm", *m.HeightCM))
	}
	sb.WriteString("\n")
}

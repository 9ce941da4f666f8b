package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vitalog/vitalog-api/internal/config"
)

type quotaSummary struct {
	Chat struct {
		PerMinute int `yaml:"per_minute"`
	} `yaml:"chat"`
	Profile struct {
		PerHour int `yaml:"per_hour"`
	} `yaml:"profile"`
	MealRecommendations struct {
		PerHour int `yaml:"per_hour"`
	} `yaml:"meal_recommendations"`
	WorkoutRecommendations struct {
		PerHour int `yaml:"per_hour"`
	} `yaml:"workout_recommendations"`
	RecommendationCacheTTL string `yaml:"recommendation_cache_ttl"`
	MaxConversationTurns   int    `yaml:"max_conversation_turns"`
}

// NewQuotasCmd creates the quotas command, printing the effective per-user
// operation quotas as YAML.
func NewQuotasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quotas",
		Short: "Show effective per-user operation quotas",
		Long:  "Print the per-user operation quotas and related settings resolved from the environment.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			var summary quotaSummary
			summary.Chat.PerMinute = cfg.ChatRatePerMinute
			summary.Profile.PerHour = cfg.ProfileRatePerHour
			summary.MealRecommendations.PerHour = cfg.MealRatePerHour
			summary.WorkoutRecommendations.PerHour = cfg.WorkoutRatePerHour
			summary.RecommendationCacheTTL = cfg.RecommendationCacheTTL.String()
			summary.MaxConversationTurns = cfg.MaxConversationTurns

			encoder := yaml.NewEncoder(os.Stdout)
			encoder.SetIndent(2)
			if err := encoder.Encode(&summary); err != nil {
				return fmt.Errorf("encode quotas: %w", err)
			}
			return encoder.Close()
		},
	}
}

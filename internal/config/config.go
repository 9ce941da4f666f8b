package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	DatabaseURL string
	ServerPort  string
	BaseURL     string
	FrontendURL string

	OpenAIKey string
	AIModel   string
	AIBaseURL string

	RedisURL         string
	RabbitMQURL      string
	RabbitMQPrefetch int

	JWKSURL   string
	JWTIssuer string

	// Per-user operation quotas (token buckets)
	ChatRatePerMinute  int
	ProfileRatePerHour int
	MealRatePerHour    int
	WorkoutRatePerHour int

	RecommendationCacheTTL time.Duration
	MaxConversationTurns   int

	ServerDebugMode bool
	WorkerDebugMode bool
	OTELEnabled     bool
	OTELEndpoint    string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),

		OpenAIKey: getEnv("OPENAI_API_KEY", ""),
		AIModel:   getEnv("AI_MODEL", ""),
		AIBaseURL: getEnv("AI_BASE_URL", ""),

		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
		RabbitMQPrefetch: getEnvInt("RABBITMQ_PREFETCH", 1),

		JWKSURL:   getEnv("JWKS_URL", ""),
		JWTIssuer: getEnv("JWT_ISSUER", ""),

		ChatRatePerMinute:  getEnvInt("CHAT_RATE_PER_MINUTE", 20),
		ProfileRatePerHour: getEnvInt("PROFILE_RATE_PER_HOUR", 5),
		MealRatePerHour:    getEnvInt("MEAL_RATE_PER_HOUR", 15),
		WorkoutRatePerHour: getEnvInt("WORKOUT_RATE_PER_HOUR", 20),

		RecommendationCacheTTL: getEnvDuration("RECOMMENDATION_CACHE_TTL", 2*time.Hour),
		MaxConversationTurns:   getEnvInt("MAX_CONVERSATION_TURNS", 10),

		ServerDebugMode: getEnvBool("SERVER_DEBUG_MODE", false),
		WorkerDebugMode: getEnvBool("WORKER_DEBUG_MODE", false),
		OTELEnabled:     getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.OpenAIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}

	if cfg.MaxConversationTurns <= 0 {
		return nil, fmt.Errorf("MAX_CONVERSATION_TURNS must be positive")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

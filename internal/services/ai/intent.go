package ai

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"
)

// Intent is the classification result for a chat message
type Intent string

const (
	// IntentWorkout means the message asks for a workout recommendation
	IntentWorkout Intent = "workout"
	// IntentMeal means the message asks for a meal recommendation
	IntentMeal Intent = "meal"
	// IntentNone means no recommendation was requested
	IntentNone Intent = "none"
)

const (
	intentTemperature = 0.1
	intentMaxTokens   = 50
)

// IntentClassifier detects recommendation requests in chat messages using a
// lightweight completion call.
type IntentClassifier struct {
	provider Provider
	builder  *PromptBuilder
	logger   *zap.Logger
}

// NewIntentClassifier creates a new intent classifier
func NewIntentClassifier(provider Provider, builder *PromptBuilder, logger *zap.Logger) *IntentClassifier {
	return &IntentClassifier{
		provider: provider,
		builder:  builder,
		logger:   logger,
	}
}

// Classify returns the intent of a user message. It fails closed: any
// completion failure or unparseable reply yields IntentNone so the base chat
// reply is never blocked on classification.
func (c *IntentClassifier) Classify(ctx context.Context, userMessage string) Intent {
	messages := c.builder.IntentMessages(userMessage)

	content, err := c.provider.Complete(ctx, messages, Options{
		Operation:   "classify_intent",
		Temperature: Temperature(intentTemperature),
		MaxTokens:   intentMaxTokens,
	})
	if err != nil {
		if c.logger != nil {
			c.logger.Debug("intent_classification_failed", zap.Error(err))
		}
		return IntentNone
	}

	return parseIntent(content)
}

// parseIntent decodes the classification reply: fences stripped, then either
// the literal token "none" or a {"intentType": ...} object.
func parseIntent(content string) Intent {
	content = stripFences(content)
	if strings.EqualFold(strings.TrimSpace(content), "none") {
		return IntentNone
	}

	extracted, err := ExtractJSON(content)
	if err != nil {
		return IntentNone
	}

	var reply struct {
		IntentType string `json:"intentType"`
	}
	if err := json.Unmarshal([]byte(extracted), &reply); err != nil {
		return IntentNone
	}

	switch strings.ToLower(strings.TrimSpace(reply.IntentType)) {
	case string(IntentWorkout):
		return IntentWorkout
	case string(IntentMeal):
		return IntentMeal
	default:
		return IntentNone
	}
}

package ai

import (
	"context"
)

// Message represents a message in a completion conversation
type Message struct {
	Role    string `json:"role"` // "system", "user" or "assistant"
	Content string `json:"content"`
}

// Message role constants
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Options controls a single completion call
type Options struct {
	// Operation names the call site for logging (e.g. "chat", "classify_intent")
	Operation string
	// Temperature overrides the model default when non-nil
	Temperature *float64
	// MaxTokens bounds the reply length when positive
	MaxTokens int
	// JSONObject requests the JSON-object response format
	JSONObject bool
}

// Temperature returns a pointer for use in Options
func Temperature(v float64) *float64 {
	return &v
}

// Provider is the interface for completion providers
type Provider interface {
	// Complete sends a message list and returns the model's reply text
	Complete(ctx context.Context, messages []Message, opts Options) (string, error)
}

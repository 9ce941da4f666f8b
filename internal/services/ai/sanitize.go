package ai

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Context key types for logging (to avoid collisions with string keys)
type contextKey string

const (
	userIDContextKey    contextKey = "user_id"
	requestIDContextKey contextKey = "request_id"
)

// UserIDContextKey returns the context key for user ID
func UserIDContextKey() contextKey {
	return userIDContextKey
}

// RequestIDContextKey returns the context key for request ID
func RequestIDContextKey() contextKey {
	return requestIDContextKey
}

const (
	// MaxPreviewLength is the maximum length for preview strings in logs
	MaxPreviewLength = 200
	// MaxFullLogLength is the maximum length for full debug content in logs
	MaxFullLogLength = 10000
	// RedactedValue is the value used to replace sensitive data
	RedactedValue = "[REDACTED]"
)

// SanitizeAPIKey sanitizes an API key for logging
func SanitizeAPIKey(apiKey string) string {
	if apiKey == "" {
		return ""
	}
	if len(apiKey) <= 8 {
		return RedactedValue
	}
	return apiKey[:4] + RedactedValue + apiKey[len(apiKey)-4:]
}

// SanitizePrompt creates a safe preview of a prompt for logging.
// Even in fullLog mode we sanitize to prevent log injection and limit size.
func SanitizePrompt(prompt string, fullLog bool) string {
	if prompt == "" {
		return ""
	}

	maxLen := MaxPreviewLength
	if fullLog {
		maxLen = MaxFullLogLength
	}

	return sanitizeStringForLogging(prompt, maxLen)
}

// SanitizeResponse creates a safe preview of a response for logging.
func SanitizeResponse(response string, fullLog bool) string {
	if response == "" {
		return ""
	}

	maxLen := MaxPreviewLength
	if fullLog {
		maxLen = MaxFullLogLength
	}

	return sanitizeStringForLogging(response, maxLen)
}

// sanitizeStringForLogging removes control characters, validates UTF-8, and truncates
func sanitizeStringForLogging(s string, maxLen int) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}

	var builder strings.Builder
	builder.Grow(len(s))
	for _, r := range s {
		if unicode.IsPrint(r) || r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			builder.WriteRune(r)
		}
	}
	s = builder.String()

	if len(s) > maxLen {
		s = s[:maxLen] + "..."
	}

	return s
}

// ExtractRequestID extracts a request ID from context if available
func ExtractRequestID(ctx context.Context) string {
	if reqID := ctx.Value(requestIDContextKey); reqID != nil {
		if id, ok := reqID.(string); ok {
			return id
		}
	}
	return ""
}

// ExtractUserID extracts a user ID from context if available (handles UUID)
func ExtractUserID(ctx context.Context) string {
	if userID := ctx.Value(userIDContextKey); userID != nil {
		if id, ok := userID.(interface{ String() string }); ok {
			return id.String()
		}
		if id, ok := userID.(string); ok {
			return id
		}
	}
	return ""
}

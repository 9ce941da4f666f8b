package logger

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxPathLength is the maximum length for URL paths in logs
	MaxPathLength = 500
	// MaxErrorMessageLength is the maximum length for error messages in logs
	MaxErrorMessageLength = 1000
	// MaxGeneralStringLength is the maximum length for general strings in logs
	MaxGeneralStringLength = 2000
	// MaxDebugContentLength is the maximum length for debug content (prompts/responses)
	MaxDebugContentLength = 10000
)

// SanitizePath sanitizes a URL path for safe logging
func SanitizePath(path string) string {
	return SanitizeString(path, MaxPathLength)
}

// SanitizeString sanitizes a general string for safe logging: removes control
// characters, truncates to maxLength, and validates UTF-8
func SanitizeString(s string, maxLength int) string {
	if s == "" {
		return ""
	}
	if maxLength <= 0 {
		maxLength = MaxGeneralStringLength
	}
	s = filterRunes(s)
	if len(s) > maxLength {
		s = s[:maxLength] + "..."
	}
	return s
}

// filterRunes validates UTF-8 and removes control characters (keeps printable, space, tab, newline, CR).
func filterRunes(s string) string {
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
	return builder.String()
}

// SanitizeError sanitizes an error message for safe logging
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error(), MaxErrorMessageLength)
}

// SanitizeDebugContent sanitizes debug content (prompts/responses) for safe logging.
// Even in debug mode we sanitize to prevent log injection and limit size.
func SanitizeDebugContent(content string) string {
	return SanitizeString(content, MaxDebugContentLength)
}

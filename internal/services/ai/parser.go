package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/vitalog/vitalog-api/internal/models"
)

// ParseError is a typed parse failure. It carries the raw model text so
// callers can log it for diagnosis; it never carries it into user-facing
// messages.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse model response: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsParseError checks if an error is a structural parse failure
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// stripFences removes leading/trailing Markdown code fences (```json / ```)
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		// drop the language tag on the opening fence, if any
		if idx := strings.Index(s, "\n"); idx != -1 {
			firstLine := strings.TrimSpace(s[:idx])
			if firstLine == "" || !strings.ContainsAny(firstLine, "[{") {
				s = s[idx+1:]
			}
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// ExtractJSON locates the JSON payload inside model free text: fences are
// stripped, then the substring between the first opening bracket and the
// last closing bracket is taken. Text with an opening bracket but no closer
// is returned as-is for repair. Fails only when no bracket is found.
func ExtractJSON(s string) (string, error) {
	s = stripFences(s)

	start := strings.IndexAny(s, "[{")
	if start == -1 {
		return "", errors.New("no JSON payload found")
	}

	end := strings.LastIndexAny(s, "]}")
	if end > start {
		s = s[start : end+1]
	} else {
		s = s[start:]
	}

	return strings.TrimSpace(s), nil
}

// RepairJSON closes a payload truncated by a token-budget cutoff: it scans
// the text tracking unmatched braces/brackets (ignoring characters inside
// string literals), closes any open string literal, drops a dangling
// trailing comma, and appends the missing closers in matching order.
// Well-formed input is returned unchanged.
func RepairJSON(s string) string {
	var stack []byte
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch c {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
			}
		}
	}

	if !inString && len(stack) == 0 {
		return s
	}

	var sb strings.Builder
	sb.WriteString(s)
	if escaped {
		// a lone trailing backslash would escape our closing quote
		sb.WriteByte('\\')
	}
	if inString {
		sb.WriteByte('"')
	}

	repaired := strings.TrimRight(sb.String(), " \t\n\r")
	repaired = strings.TrimSuffix(repaired, ",")

	sb.Reset()
	sb.WriteString(repaired)
	for i := len(stack) - 1; i >= 0; i-- {
		sb.WriteByte(stack[i])
	}
	return sb.String()
}

// decodeResponse runs the full extract-repair-unmarshal pipeline
func decodeResponse(raw string, v any) error {
	extracted, err := ExtractJSON(raw)
	if err != nil {
		return &ParseError{Raw: raw, Err: err}
	}

	repaired := RepairJSON(extracted)
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return &ParseError{Raw: raw, Err: err}
	}

	return nil
}

// ParseMealSet decodes a meal recommendation response. A decoded set with
// zero recommendations is a parse failure, not a valid empty answer.
func ParseMealSet(raw string) (*models.MealRecommendationSet, error) {
	var set models.MealRecommendationSet
	if err := decodeResponse(raw, &set); err != nil {
		return nil, err
	}
	if len(set.Recommendations) == 0 {
		return nil, &ParseError{Raw: raw, Err: errors.New("no recommendations in response")}
	}
	return &set, nil
}

// ParseWorkoutSet decodes a workout recommendation response.
func ParseWorkoutSet(raw string) (*models.WorkoutRecommendationSet, error) {
	var set models.WorkoutRecommendationSet
	if err := decodeResponse(raw, &set); err != nil {
		return nil, err
	}
	if len(set.Recommendations) == 0 {
		return nil, &ParseError{Raw: raw, Err: errors.New("no recommendations in response")}
	}
	return &set, nil
}

// ParseWorkoutActions decodes a chat-path workout reply (bare JSON array).
func ParseWorkoutActions(raw string) ([]models.WorkoutActionData, error) {
	var items []models.WorkoutActionData
	if err := decodeResponse(raw, &items); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, &ParseError{Raw: raw, Err: errors.New("no workouts in response")}
	}
	return items, nil
}

// ParseMealActions decodes a chat-path meal reply (bare JSON array).
func ParseMealActions(raw string) ([]models.MealActionData, error) {
	var items []models.MealActionData
	if err := decodeResponse(raw, &items); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, &ParseError{Raw: raw, Err: errors.New("no meals in response")}
	}
	return items, nil
}

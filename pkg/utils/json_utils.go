package utils

import (
	"encoding/json"
	"strings"
)

// ParseJSON parses a JSON string into the given value, tolerating the
// markdown code fences that text models often wrap structured output in.
func ParseJSON(jsonStr string, result interface{}) error {
	return json.Unmarshal([]byte(StripCodeFences(jsonStr)), result)
}

// StripCodeFences removes a surrounding ```json or ``` code block
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)

	fence := ""
	switch {
	case strings.HasPrefix(s, "```json"):
		fence = "```json"
	case strings.HasPrefix(s, "```"):
		fence = "```"
	default:
		return s
	}

	s = s[len(fence):]
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

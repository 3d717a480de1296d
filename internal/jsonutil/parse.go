// Package jsonutil extracts and parses JSON from generative-model responses
// that may be wrapped in markdown code fences or embedded in prose.
package jsonutil

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StripMarkdownFences removes ```json ... ``` or ``` ... ``` wrapping from text.
// Returns the content between the fences, or the original text if no fences are found.
func StripMarkdownFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	if len(lines) < 3 {
		return text
	}

	startIdx := 1 // skip the opening ``` line
	endIdx := len(lines) - 1

	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			endIdx = i
			break
		}
	}

	return strings.Join(lines[startIdx:endIdx], "\n")
}

// ExtractArray returns the JSON array embedded in text, located as the span
// from the first "[" through the last "]". The model is asked for a bare
// array but routinely adds a preamble or closing remarks around it.
func ExtractArray(text string) (string, error) {
	text = strings.TrimSpace(text)

	start := strings.Index(text, "[")
	if start == -1 {
		return "", fmt.Errorf("no JSON array found")
	}
	end := strings.LastIndex(text, "]")
	if end < start {
		return "", fmt.Errorf("no closing ] found")
	}

	return text[start : end+1], nil
}

// ParseArray strips markdown fences from raw model response text, extracts the
// embedded JSON array, and unmarshals it into a slice of T.
func ParseArray[T any](raw string) ([]T, error) {
	jsonStr, err := ExtractArray(StripMarkdownFences(raw))
	if err != nil {
		return nil, fmt.Errorf("%w (raw length: %d)", err, len(raw))
	}

	var result []T
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		// Include a truncated preview in the error for debugging
		preview := jsonStr
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		return nil, fmt.Errorf("invalid JSON: %w (text: %s)", err, preview)
	}
	return result, nil
}

package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// TruncateRunes truncates text to at most maxRunes characters. A trailing
// "..." marks truncation.
func TruncateRunes(text string, maxRunes int) string {
	if maxRunes <= 0 || len(text) <= maxRunes {
		return text
	}
	n := 0
	for i := range text {
		if n == maxRunes {
			return text[:i] + "..."
		}
		n++
	}
	return text
}

// StripCodeFence returns the body of the first Markdown code block in text,
// or the trimmed text when there is none.
func StripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	start := strings.Index(text, "```")
	if start < 0 {
		return text
	}

	body := text[start+3:]
	// Drop the info string (```json)
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		body = ""
	}
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

// DecodeJSON decodes a model response into v after stripping code fences.
// Text surrounding the outermost JSON object is ignored. When strict is set,
// fields not present in v are rejected.
func DecodeJSON(text string, v any, strict bool) error {
	body := StripCodeFence(text)
	if i, j := strings.IndexByte(body, '{'), strings.LastIndexByte(body, '}'); i >= 0 && j > i {
		body = body[i : j+1]
	}
	if body == "" {
		return fmt.Errorf("no JSON object in response")
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("parsing JSON response: %w", err)
	}
	return nil
}

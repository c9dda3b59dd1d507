package llm

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var codeBlockRe = regexp.MustCompile("(?s)^```(?:json|JSON)?\\s*(.*?)\\s*```$")

// StripCodeBlock removes a surrounding markdown code fence, if any.
func StripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

// extractObject cuts s down to its outermost {...} span when the model
// wrapped the object in prose.
func extractObject(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}

// Decode parses a model answer into T and runs validate on it (validate may
// be nil). Every failure is a *ParseError carrying the raw answer.
func Decode[T any](raw string, validate func(*T) error) (T, error) {
	var out T
	text := StripCodeBlock(raw)
	if text == "" {
		return out, &ParseError{Raw: raw, Err: errors.New("empty response")}
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		repaired := extractObject(text)
		if repaired == text {
			return out, &ParseError{Raw: raw, Err: err}
		}
		out = *new(T)
		if err2 := json.Unmarshal([]byte(repaired), &out); err2 != nil {
			return out, &ParseError{Raw: raw, Err: err}
		}
	}
	if validate != nil {
		if err := validate(&out); err != nil {
			return out, &ParseError{Raw: raw, Err: err}
		}
	}
	return out, nil
}

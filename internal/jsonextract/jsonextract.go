// Package jsonextract recovers a JSON document from free-form LLM output.
package jsonextract

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Shape is the top-level JSON kind a caller expects
type Shape int

const (
	Object Shape = iota
	Array
)

func (s Shape) open() byte {
	if s == Array {
		return '['
	}
	return '{'
}

func (s Shape) close() byte {
	if s == Array {
		return ']'
	}
	return '}'
}

// Empty returns the empty document of the shape
func (s Shape) Empty() string {
	if s == Array {
		return "[]"
	}
	return "{}"
}

var fencedBlockRegex = regexp.MustCompile("```(?:json|JSON)?[ \\t]*\\r?\\n?([\\s\\S]*?)```")

// Extract returns the first JSON document of the given shape found in text.
// It tries, in order, the first fenced code block, the first balanced span
// that parses, and a cleanup pass over the best candidate span. When nothing
// parses it returns the empty document of the shape and false.
func Extract(text string, shape Shape) (string, bool) {
	var fenced string
	if m := fencedBlockRegex.FindStringSubmatch(text); len(m) > 1 {
		fenced = strings.TrimSpace(m[1])
		if isValid(fenced, shape) {
			return fenced, true
		}
	}

	trimmed := strings.TrimSpace(text)
	if isValid(trimmed, shape) {
		return trimmed, true
	}

	for _, source := range []string{fenced, text} {
		if source == "" {
			continue
		}
		if span, ok := firstBalancedValid(source, shape); ok {
			return span, true
		}
	}

	for _, source := range []string{fenced, text} {
		if source == "" {
			continue
		}
		candidate := outerSpan(source, shape)
		if candidate == "" {
			continue
		}
		if cleaned := cleanup(candidate); isValid(cleaned, shape) {
			return cleaned, true
		}
	}

	return shape.Empty(), false
}

// ExtractObject extracts a JSON object from text
func ExtractObject(text string) (string, bool) {
	return Extract(text, Object)
}

// ExtractArray extracts a JSON array from text
func ExtractArray(text string) (string, bool) {
	return Extract(text, Array)
}

// Decode extracts a document of the given shape and unmarshals it into v.
// It reports whether a document was recovered and decoded.
func Decode(text string, shape Shape, v interface{}) bool {
	doc, ok := Extract(text, shape)
	if !ok {
		return false
	}
	return json.Unmarshal([]byte(doc), v) == nil
}

func isValid(s string, shape Shape) bool {
	if s == "" || s[0] != shape.open() || s[len(s)-1] != shape.close() {
		return false
	}
	return json.Valid([]byte(s))
}

// firstBalancedValid scans for every opening bracket of the shape and returns
// the first balanced span that parses as JSON.
func firstBalancedValid(s string, shape Shape) (string, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] != shape.open() {
			continue
		}
		end := matchingClose(s, i)
		if end < 0 {
			continue
		}
		if span := s[i : end+1]; json.Valid([]byte(span)) {
			return span, true
		}
	}
	return "", false
}

// matchingClose returns the index of the bracket closing the one at start,
// ignoring brackets inside double-quoted strings, or -1.
func matchingClose(s string, start int) int {
	depth := 0
	inString := false
	escaped := false

	for j := start; j < len(s); j++ {
		c := s[j]
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
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return j
			}
			if depth < 0 {
				return -1
			}
		}
	}
	return -1
}

// outerSpan strips surrounding prose, keeping text from the first opening
// bracket of the shape to the last closing one.
func outerSpan(s string, shape Shape) string {
	start := strings.IndexByte(s, shape.open())
	end := strings.LastIndexByte(s, shape.close())
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

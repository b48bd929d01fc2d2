// Package llmjson reads JSON objects out of reasoning-service responses.
//
// Parsing happens in two explicit stages. The strict stage accepts a body
// that is exactly one JSON object. The recovery stage looks for the first
// balanced, valid object embedded in surrounding prose or code fences.
// Anything else is an error.
package llmjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrNoObject indicates the body contains no parseable JSON object.
var ErrNoObject = errors.New("no JSON object in response")

// Stage says which parse stage produced an object.
type Stage int

const (
	// StageStrict means the whole body was a JSON object.
	StageStrict Stage = iota + 1

	// StageRecovered means the object was found inside other text.
	StageRecovered
)

// String returns the string representation.
func (s Stage) String() string {
	switch s {
	case StageStrict:
		return "strict"
	case StageRecovered:
		return "recovered"
	default:
		return "none"
	}
}

// Object returns the JSON object in raw and the stage that found it.
func Object(raw string) (gjson.Result, Stage, error) {
	if obj, ok := strict(raw); ok {
		return gjson.Parse(obj), StageStrict, nil
	}
	if obj, ok := Locate(raw); ok {
		return gjson.Parse(obj), StageRecovered, nil
	}
	return gjson.Result{}, 0, ErrNoObject
}

// Decode unmarshals the JSON object in raw into v.
func Decode(raw string, v any) (Stage, error) {
	obj, stage, err := Object(raw)
	if err != nil {
		return 0, err
	}
	if err := json.Unmarshal([]byte(obj.Raw), v); err != nil {
		return stage, fmt.Errorf("decode %s object: %w", stage, err)
	}
	return stage, nil
}

func strict(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") || !gjson.Valid(trimmed) {
		return "", false
	}
	return trimmed, true
}

// Locate returns the first balanced substring of raw that is a valid JSON
// object. Braces inside string literals are ignored.
func Locate(raw string) (string, bool) {
	for start := strings.IndexByte(raw, '{'); start >= 0; {
		if end := matchBrace(raw, start); end > start {
			candidate := raw[start : end+1]
			if gjson.Valid(candidate) {
				return candidate, true
			}
		}
		next := strings.IndexByte(raw[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

// matchBrace returns the index of the brace closing raw[start], or -1.
func matchBrace(raw string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// Package schema derives compact type shapes from JSON bodies and diffs
// shapes observed at different times. Inference is pure and bounded: hard
// caps on recursion depth and fields per level keep the output small no
// matter how large or adversarial the input document is.
package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const (
	// maxDepth bounds object/array recursion.
	maxDepth = 5
	// maxFieldsPerLevel bounds how many keys of one object are recorded.
	maxFieldsPerLevel = 12
	// maxSummaryKeys bounds how many keys a summary string lists.
	maxSummaryKeys = 6
)

// priorityFields are sorted to the front at every object level before the
// width cap truncates the remainder, so the most useful fields survive.
var priorityFields = map[string]int{
	"id": 0, "uuid": 1, "name": 2, "title": 3, "status": 4,
	"type": 5, "email": 6, "slug": 7, "key": 8, "url": 9,
	"created_at": 10, "updated_at": 11,
}

// InferredSchema is the bounded shape of one JSON value. Fields maps
// dot-notation paths (with "[]" marking array descent) to type names.
type InferredSchema struct {
	Fields      map[string]string `json:"fields"`
	Summary     string            `json:"summary"`
	IsArray     bool              `json:"isArray"`
	ArrayLength int               `json:"arrayLength,omitempty"`
}

// InferBody parses body as JSON and infers its schema. A body that is not
// valid JSON yields nil; the caller treats it as opaque text.
func InferBody(body string) *InferredSchema {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
		return nil
	}
	return Infer(v)
}

// Infer derives the schema of an already decoded JSON value.
func Infer(v any) *InferredSchema {
	s := &InferredSchema{Fields: make(map[string]string)}
	if arr, ok := v.([]any); ok {
		s.IsArray = true
		s.ArrayLength = len(arr)
	}
	walk(v, "", 0, s.Fields)
	s.Summary = Summarize(v)
	return s
}

func walk(v any, prefix string, depth int, fields map[string]string) {
	if depth >= maxDepth {
		return
	}
	switch val := v.(type) {
	case map[string]any:
		for _, key := range cappedKeys(val) {
			path := joinPath(prefix, key)
			fields[path] = typeName(val[key])
			walk(val[key], path, depth+1, fields)
		}
	case []any:
		// Sample the first element only; arrays are assumed homogeneous.
		if len(val) > 0 {
			walk(val[0], prefix+"[]", depth+1, fields)
		}
	}
}

// cappedKeys orders an object's keys priority-first then alphabetically and
// truncates to the width cap.
func cappedKeys(obj map[string]any) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		pi, iok := priorityFields[strings.ToLower(keys[i])]
		pj, jok := priorityFields[strings.ToLower(keys[j])]
		switch {
		case iok && jok:
			return pi < pj
		case iok != jok:
			return iok
		default:
			return keys[i] < keys[j]
		}
	})
	if len(keys) > maxFieldsPerLevel {
		keys = keys[:maxFieldsPerLevel]
	}
	return keys
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64, json.Number:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return "unknown"
	}
}

// Summarize renders a compact shape string for a JSON value, e.g.
// object{id,name,+3} or array[7]<object{id}>.
func Summarize(v any) string {
	return summarize(v, 0)
}

func summarize(v any, depth int) string {
	switch val := v.(type) {
	case map[string]any:
		keys := cappedKeys(val)
		truncated := len(val) - len(keys)
		if len(keys) > maxSummaryKeys {
			truncated += len(keys) - maxSummaryKeys
			keys = keys[:maxSummaryKeys]
		}
		body := strings.Join(keys, ",")
		if truncated > 0 {
			body += fmt.Sprintf(",+%d", truncated)
		}
		return "object{" + body + "}"
	case []any:
		if len(val) == 0 {
			return "array[0]"
		}
		if depth >= maxDepth {
			return fmt.Sprintf("array[%d]", len(val))
		}
		return fmt.Sprintf("array[%d]<%s>", len(val), summarize(val[0], depth+1))
	default:
		return typeName(v)
	}
}

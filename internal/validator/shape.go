package validator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/traceforge/traceforge/internal/schema"
)

// AnalyzeShape renders a compact shape string for a response body and
// reports whether the body is substantial enough to count as verification:
// a non-empty array or object, a non-empty string, or any number.
func AnalyzeShape(body string) (string, bool) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return "empty", false
	}

	var v any
	if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
		lower := strings.ToLower(trimmed)
		if strings.Contains(lower, "<html") || strings.HasPrefix(lower, "<!doctype html") {
			return "html", false
		}
		return "text", true
	}

	switch val := v.(type) {
	case []any:
		return fmt.Sprintf("array[%d]", len(val)), len(val) > 0
	case map[string]any:
		return schema.Summarize(val), len(val) > 0
	case string:
		return "string", val != ""
	case float64:
		return "number", true
	case bool:
		return "boolean", false
	default:
		return "null", false
	}
}

// Package recipe applies declarative field-mapping rules to response
// bodies. Recipes are plain data (YAML or JSON), validated before they are
// persisted and applied at query time; an inapplicable recipe yields nil so
// the caller falls back to the raw body.
package recipe

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	apperrors "github.com/traceforge/traceforge/internal/errors"
)

// Filter narrows the item list before field mapping. Exactly one of the
// predicates is set.
type Filter struct {
	Field    string   `yaml:"field" json:"field"`
	Equals   string   `yaml:"equals,omitempty" json:"equals,omitempty"`
	Contains string   `yaml:"contains,omitempty" json:"contains,omitempty"`
	In       []string `yaml:"in,omitempty" json:"in,omitempty"`
}

// Recipe maps a response body onto a flat list of output records.
type Recipe struct {
	Name    string            `yaml:"name,omitempty" json:"name,omitempty"`
	Source  string            `yaml:"source" json:"source"`
	Filter  *Filter           `yaml:"filter,omitempty" json:"filter,omitempty"`
	Require []string          `yaml:"require,omitempty" json:"require,omitempty"`
	Fields  map[string]string `yaml:"fields" json:"fields"`
	Compact bool              `yaml:"compact,omitempty" json:"compact,omitempty"`
}

// Apply resolves the recipe against a decoded body. It returns nil when the
// recipe does not apply to this body shape; it never fails.
func Apply(body any, r *Recipe) []map[string]any {
	resolved, ok := resolvePath(body, r.Source)
	if !ok {
		return nil
	}
	items, ok := resolved.([]any)
	if !ok {
		return nil
	}
	objects := make([]map[string]any, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			// Not a homogeneous object list; fall back to raw data.
			return nil
		}
		objects = append(objects, obj)
	}

	out := make([]map[string]any, 0, len(objects))
	for _, obj := range objects {
		if r.Filter != nil && !matchFilter(obj, r.Filter) {
			continue
		}
		if missingRequired(obj, r.Require) {
			continue
		}
		record := make(map[string]any, len(r.Fields))
		for name, path := range r.Fields {
			value, found := resolvePath(obj, path)
			if !found {
				if !r.Compact {
					record[name] = nil
				}
				continue
			}
			record[name] = value
		}
		out = append(out, record)
	}
	return out
}

func matchFilter(obj map[string]any, f *Filter) bool {
	value, ok := resolvePath(obj, f.Field)
	if !ok {
		return false
	}
	s := stringify(value)
	switch {
	case f.Equals != "":
		return s == f.Equals
	case f.Contains != "":
		return strings.Contains(s, f.Contains)
	case len(f.In) > 0:
		for _, candidate := range f.In {
			if s == candidate {
				return true
			}
		}
		return false
	default:
		return true
	}
}

func missingRequired(obj map[string]any, require []string) bool {
	for _, field := range require {
		if v, ok := resolvePath(obj, field); !ok || v == nil {
			return true
		}
	}
	return false
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}

// resolvePath walks a dot/bracket path like "data.items[0].id" into a
// decoded JSON value.
func resolvePath(v any, path string) (any, bool) {
	if path == "" {
		return v, true
	}
	current := v
	for _, part := range strings.Split(path, ".") {
		key, indexes, ok := splitBrackets(part)
		if !ok {
			return nil, false
		}
		if key != "" {
			obj, isObj := current.(map[string]any)
			if !isObj {
				return nil, false
			}
			child, exists := obj[key]
			if !exists {
				return nil, false
			}
			current = child
		}
		for _, idx := range indexes {
			arr, isArr := current.([]any)
			if !isArr || idx < 0 || idx >= len(arr) {
				return nil, false
			}
			current = arr[idx]
		}
	}
	return current, true
}

// splitBrackets decomposes one path part like `items[0][1]` into its key
// and index chain.
func splitBrackets(part string) (string, []int, bool) {
	open := strings.IndexByte(part, '[')
	if open == -1 {
		return part, nil, part != ""
	}
	key := part[:open]
	rest := part[open:]
	var indexes []int
	for rest != "" {
		if rest[0] != '[' {
			return "", nil, false
		}
		end := strings.IndexByte(rest, ']')
		if end == -1 {
			return "", nil, false
		}
		idx, err := strconv.Atoi(rest[1:end])
		if err != nil {
			return "", nil, false
		}
		indexes = append(indexes, idx)
		rest = rest[end+1:]
	}
	return key, indexes, true
}

// Validate statically checks a recipe and accumulates every violation
// rather than stopping at the first.
func Validate(r *Recipe) []string {
	var errs []string
	if strings.TrimSpace(r.Source) == "" {
		errs = append(errs, "source: must be a non-empty path")
	}
	if len(r.Fields) == 0 {
		errs = append(errs, "fields: at least one output field is required")
	}
	for name, path := range r.Fields {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, "fields: output names must be non-empty")
		}
		if strings.TrimSpace(path) == "" {
			errs = append(errs, fmt.Sprintf("fields.%s: source path must be non-empty", name))
		}
	}
	if f := r.Filter; f != nil {
		if strings.TrimSpace(f.Field) == "" {
			errs = append(errs, "filter.field: must be non-empty")
		}
		predicates := 0
		if f.Equals != "" {
			predicates++
		}
		if f.Contains != "" {
			predicates++
		}
		if len(f.In) > 0 {
			predicates++
		}
		switch {
		case predicates == 0:
			errs = append(errs, "filter: one of equals, contains, or in is required")
		case predicates > 1:
			errs = append(errs, "filter: equals, contains, and in are mutually exclusive")
		}
	}
	for i, field := range r.Require {
		if strings.TrimSpace(field) == "" {
			errs = append(errs, fmt.Sprintf("require[%d]: field name must be non-empty", i))
		}
	}
	return errs
}

// ApplyToBody decodes a raw JSON body and applies the recipe. Unparseable
// bodies are inapplicable, not errors.
func ApplyToBody(body string, r *Recipe) []map[string]any {
	var v any
	if err := json.Unmarshal([]byte(strings.TrimSpace(body)), &v); err != nil {
		return nil
	}
	return Apply(v, r)
}

// LoadFile reads one or more recipes from a YAML document.
func LoadFile(path string) ([]*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewStoreError(path, "load recipes", err)
	}
	var doc struct {
		Recipes []*Recipe `yaml:"recipes"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		// Allow a bare single-recipe document too.
		var single Recipe
		if err2 := yaml.Unmarshal(data, &single); err2 != nil {
			return nil, apperrors.NewParseError(path, "parse recipes", err)
		}
		return []*Recipe{&single}, nil
	}
	if len(doc.Recipes) == 0 {
		var single Recipe
		if err := yaml.Unmarshal(data, &single); err == nil && single.Source != "" {
			return []*Recipe{&single}, nil
		}
	}
	return doc.Recipes, nil
}

package tools

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
)

// ValidationError aggregates every issue found while checking a call's
// arguments against the tool's parameter schema.
type ValidationError struct {
	Tool   string
	Issues []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	lines := []string{fmt.Sprintf("%s: validation failed with %d issue(s):", e.Tool, len(e.Issues))}
	for _, issue := range e.Issues {
		lines = append(lines, "  - "+issue)
	}
	return strings.Join(lines, "\n")
}

// Validate checks args against a tool's parameter schema. It covers the
// constraints used by OpenAI-style tool definitions: object type,
// required, additionalProperties:false, per-property types, string and
// number constraints, enums, and one level of nested objects.
func Validate(def Definition, args map[string]any) error {
	var issues []string
	validateObject(def.Parameters, args, "$", &issues)
	if len(issues) > 0 {
		return &ValidationError{Tool: def.Name, Issues: issues}
	}
	return nil
}

// validateObject checks an args map against an object schema.
func validateObject(schema map[string]any, args map[string]any, path string, issues *[]string) {
	properties, _ := schema["properties"].(map[string]any)

	var required []string
	switch req := schema["required"].(type) {
	case []string:
		required = req
	case []any:
		for _, r := range req {
			if s, ok := r.(string); ok {
				required = append(required, s)
			}
		}
	}

	// additionalProperties defaults to true; only an explicit false
	// rejects undeclared keys.
	additionalPermitted := true
	if ap, ok := schema["additionalProperties"].(bool); ok {
		additionalPermitted = ap
	}

	var missing []string
	for _, r := range required {
		if _, ok := args[r]; !ok {
			missing = append(missing, r)
		}
	}
	if len(missing) > 0 {
		*issues = append(*issues, fmt.Sprintf("%s: missing required argument(s): %s", path, strings.Join(missing, ", ")))
	}

	if !additionalPermitted {
		var extra []string
		for k := range args {
			if _, ok := properties[k]; !ok {
				extra = append(extra, k)
			}
		}
		sort.Strings(extra)
		if len(extra) > 0 {
			*issues = append(*issues, fmt.Sprintf("%s: unexpected argument(s): %s", path, strings.Join(extra, ", ")))
		}
	}

	for key, raw := range properties {
		propSchema, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		value, present := args[key]
		if !present {
			continue // optional and absent is fine
		}
		validateValue(propSchema, value, path+"."+key, issues)
	}
}

// validateValue checks one value against its property schema.
func validateValue(schema map[string]any, value any, path string, issues *[]string) {
	expectedType, _ := schema["type"].(string)

	if expectedType != "" && !typeMatches(expectedType, value) {
		*issues = append(*issues, fmt.Sprintf("%s: expected %s, got %s", path, expectedType, jsonTypeName(value)))
		return
	}

	if enum, ok := schema["enum"].([]any); ok {
		found := false
		for _, allowed := range enum {
			if value == allowed {
				found = true
				break
			}
		}
		if !found {
			*issues = append(*issues, fmt.Sprintf("%s: value must be one of %v", path, enum))
			return
		}
	}

	switch expectedType {
	case "string":
		s := value.(string)
		if min, ok := asInt(schema["minLength"]); ok && len(s) < min {
			*issues = append(*issues, fmt.Sprintf("%s: minLength %d violated", path, min))
		}
		if max, ok := asInt(schema["maxLength"]); ok && len(s) > max {
			*issues = append(*issues, fmt.Sprintf("%s: maxLength %d violated", path, max))
		}
		if pat, ok := schema["pattern"].(string); ok {
			re, err := regexp.Compile(pat)
			if err != nil {
				*issues = append(*issues, fmt.Sprintf("%s: invalid schema regex pattern", path))
			} else if !re.MatchString(s) {
				*issues = append(*issues, fmt.Sprintf("%s: pattern %q did not match", path, pat))
			}
		}

	case "integer", "number":
		v := asFloat(value)
		if min, ok := asNumber(schema["minimum"]); ok && v < min {
			*issues = append(*issues, fmt.Sprintf("%s: minimum %v violated", path, min))
		}
		if max, ok := asNumber(schema["maximum"]); ok && v > max {
			*issues = append(*issues, fmt.Sprintf("%s: maximum %v violated", path, max))
		}

	case "object":
		if sub, ok := value.(map[string]any); ok {
			validateObject(schema, sub, path, issues)
		}
	}
}

// typeMatches maps a JSON schema type name to Go's decoded JSON types.
// Booleans never satisfy integer or number; integers must be whole.
func typeMatches(expected string, value any) bool {
	switch expected {
	case "string":
		_, ok := value.(string)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "integer":
		switch v := value.(type) {
		case int:
			return true
		case float64:
			return v == math.Trunc(v)
		}
		return false
	case "number":
		switch value.(type) {
		case int, float64:
			return true
		}
		return false
	case "object":
		_, ok := value.(map[string]any)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "null":
		return value == nil
	default:
		// Unknown type in this partial validator: ignore rather than
		// fail hard.
		return true
	}
}

// jsonTypeName names a decoded JSON value's type for error messages.
func jsonTypeName(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case float64:
		if v == math.Trunc(v) {
			return "integer"
		}
		return "number"
	case int:
		return "integer"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return fmt.Sprintf("%T", value)
	}
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	}
	return 0, false
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case float64:
		return n
	}
	return 0
}

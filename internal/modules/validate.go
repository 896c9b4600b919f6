package modules

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/go-faster/errors"
)

// ValidateParams checks params against InputSchema.
// - Unknown fields: returns error (the contract is closed)
// - Required fields: returns error if missing, nil or empty string
// - Type check: verifies value matches declared property type
// - Minimum: numeric values below a declared minimum are rejected
// - Defaults: optional fields with a declared default are filled in
// Returns validated params (shallow copy) or error.
func ValidateParams(schema InputSchema, params map[string]any) (map[string]any, error) {
	if params == nil {
		params = make(map[string]any)
	}

	var unknown []string
	for key := range params {
		if _, declared := schema.Properties[key]; !declared {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown parameter(s): %s", strings.Join(unknown, ", "))
	}

	// Check required fields
	var missing []string
	for _, key := range schema.Required {
		val, exists := params[key]
		if !exists || val == nil {
			missing = append(missing, key)
			continue
		}
		// Check for zero-value strings on required fields
		if s, ok := val.(string); ok && s == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required parameter(s): %s", strings.Join(missing, ", "))
	}

	validated := make(map[string]any, len(schema.Properties))
	for key, val := range params {
		if val == nil {
			continue
		}
		prop := schema.Properties[key]
		if err := checkType(key, val, prop.Type); err != nil {
			return nil, err
		}
		if prop.Minimum != nil {
			if n, ok := numericValue(val); ok && n < *prop.Minimum {
				return nil, fmt.Errorf("parameter %q: must be >= %v", key, *prop.Minimum)
			}
		}
		validated[key] = val
	}

	for key, prop := range schema.Properties {
		if _, set := validated[key]; !set && prop.Default != nil {
			validated[key] = prop.Default
		}
	}

	return validated, nil
}

// checkType verifies that val matches the expected JSON Schema type.
func checkType(key string, val any, expectedType string) error {
	switch expectedType {
	case "string":
		if _, ok := val.(string); !ok {
			return fmt.Errorf("parameter %q: expected string, got %s", key, jsonKind(val))
		}
	case "integer":
		if !isIntegral(val) {
			return fmt.Errorf("parameter %q: expected integer, got %s", key, jsonKind(val))
		}
	case "number":
		if _, ok := val.(float64); !ok && !isIntegral(val) {
			return fmt.Errorf("parameter %q: expected number, got %s", key, jsonKind(val))
		}
	case "boolean":
		if _, ok := val.(bool); !ok {
			return fmt.Errorf("parameter %q: expected boolean, got %s", key, jsonKind(val))
		}
	case "array":
		if _, ok := val.([]any); !ok {
			return fmt.Errorf("parameter %q: expected array, got %s", key, jsonKind(val))
		}
	case "object":
		if _, ok := val.(map[string]any); !ok {
			return fmt.Errorf("parameter %q: expected object, got %s", key, jsonKind(val))
		}
		// "" or unknown types: skip check (lenient)
	}
	return nil
}

// isIntegral reports whether val is a whole number. JSON numbers arrive as
// float64; Go callers may pass native ints.
func isIntegral(val any) bool {
	switch v := val.(type) {
	case float64:
		return !math.IsInf(v, 0) && v == math.Trunc(v)
	case int, int32, int64:
		return true
	case json.Number:
		_, err := v.Int64()
		return err == nil
	}
	return false
}

func numericValue(val any) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

func jsonKind(val any) string {
	switch val.(type) {
	case string:
		return "string"
	case float64, int, int32, int64, json.Number:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", val)
}

// DecodeParams maps validated params onto a tool input struct.
func DecodeParams(params map[string]any, out any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return errors.Wrap(err, "encode params")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrap(err, "decode params")
	}
	return nil
}

package matching

import (
	"fmt"
	"reflect"

	"github.com/ohler55/ojg/jp"
)

// JSONPathCondition is a compiled JSONPath expression paired with the value
// it must produce. An expected value of {"exists": bool} turns the condition
// into an existence check.
type JSONPathCondition struct {
	Path     string
	Expected any
	expr     jp.Expr
}

// NewJSONPathCondition compiles path and returns the condition.
func NewJSONPathCondition(path string, expected any) (JSONPathCondition, error) {
	expr, err := jp.ParseString(path)
	if err != nil {
		return JSONPathCondition{}, fmt.Errorf("invalid JSONPath expression %q: %w", path, err)
	}
	return JSONPathCondition{Path: path, Expected: expected, expr: expr}, nil
}

// Match evaluates the condition against a decoded JSON document.
func (c JSONPathCondition) Match(data any) bool {
	if c.expr == nil {
		return false
	}

	results := c.expr.Get(data)

	if isExistenceCheck(c.Expected) {
		return getExistsValue(c.Expected) == (len(results) > 0)
	}

	// For wildcard paths that return multiple results, any match is enough
	for _, result := range results {
		if valuesEqual(result, c.Expected) {
			return true
		}
	}
	return false
}

// MatchJSONPath reports whether every condition holds for the document.
// A nil document (the body was not JSON) never matches a non-empty set.
func MatchJSONPath(conditions []JSONPathCondition, data any) bool {
	if len(conditions) == 0 {
		return true
	}
	if data == nil {
		return false
	}
	for _, c := range conditions {
		if !c.Match(data) {
			return false
		}
	}
	return true
}

// Lookup returns the first value selected by path in data.
func Lookup(path string, data any) (any, bool, error) {
	expr, err := jp.ParseString(path)
	if err != nil {
		return nil, false, fmt.Errorf("invalid JSONPath expression %q: %w", path, err)
	}
	results := expr.Get(data)
	if len(results) == 0 {
		return nil, false, nil
	}
	return results[0], true, nil
}

// isExistenceCheck determines if the expected value is an existence check object.
func isExistenceCheck(expected any) bool {
	m, ok := expected.(map[string]any)
	if !ok {
		return false
	}
	_, hasExists := m["exists"]
	return hasExists && len(m) == 1
}

func getExistsValue(expected any) bool {
	m, ok := expected.(map[string]any)
	if !ok {
		return false
	}
	b, ok := m["exists"].(bool)
	return ok && b
}

// valuesEqual compares two values for equality, handling numeric coercion
// between JSON float64 numbers and Go integer literals.
func valuesEqual(actual, expected any) bool {
	if actual == nil || expected == nil {
		return actual == nil && expected == nil
	}

	if reflect.DeepEqual(actual, expected) {
		return true
	}

	actualNum, actualIsNum := toFloat64(actual)
	expectedNum, expectedIsNum := toFloat64(expected)
	if actualIsNum && expectedIsNum {
		return actualNum == expectedNum
	}

	return false
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case uint32:
		return float64(n), true
	default:
		return 0, false
	}
}

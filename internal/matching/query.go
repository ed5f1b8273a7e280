package matching

import (
	"net/url"
	"slices"
)

// MatchQueryParam checks that the parameter is present and that every
// expected value appears among the given values, in any order.
func MatchQueryParam(name string, expected []string, params url.Values) bool {
	given, ok := params[name]
	if !ok {
		return false
	}
	for _, want := range expected {
		if !slices.Contains(given, want) {
			return false
		}
	}
	return true
}

// MatchQueryParams checks if all specified query parameters match.
// Returns true only if ALL parameters match.
func MatchQueryParams(expected map[string][]string, params url.Values) bool {
	for name, values := range expected {
		if !MatchQueryParam(name, values, params) {
			return false
		}
	}
	return true
}

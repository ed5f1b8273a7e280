package matching

import (
	"net/http"
	"strings"
)

// MatchHeaderPattern checks if a header matches a pattern.
// Header names are case-insensitive. Values match exactly unless the pattern
// uses prefix (value*), suffix (*value) or contains (*value*) wildcards.
func MatchHeaderPattern(name, pattern string, headers http.Header) bool {
	values := headers.Values(name)
	if len(values) == 0 {
		return false
	}

	for _, actual := range values {
		if matchValuePattern(pattern, actual) {
			return true
		}
	}
	return false
}

// MatchHeaders checks if all specified headers match.
// Returns true only if ALL headers match.
func MatchHeaders(expected map[string]string, headers http.Header) bool {
	for name, pattern := range expected {
		if !MatchHeaderPattern(name, pattern, headers) {
			return false
		}
	}
	return true
}

func matchValuePattern(pattern, actual string) bool {
	if !strings.Contains(pattern, "*") {
		return actual == pattern
	}

	switch {
	case pattern == "*":
		return true
	case strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*"):
		return strings.Contains(actual, strings.Trim(pattern, "*"))
	case strings.HasSuffix(pattern, "*"):
		return strings.HasPrefix(actual, strings.TrimSuffix(pattern, "*"))
	case strings.HasPrefix(pattern, "*"):
		return strings.HasSuffix(actual, strings.TrimPrefix(pattern, "*"))
	}

	return matchWildcard(pattern, actual)
}

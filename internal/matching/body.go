package matching

import (
	"regexp"
	"strings"
)

// MatchBodyContains checks if the body contains the substring.
func MatchBodyContains(body []byte, contains string) bool {
	if contains == "" {
		return true
	}
	return strings.Contains(string(body), contains)
}

// MatchBodyEquals checks if the body exactly equals the expected value.
// A nil expectation matches any body; a pointer to "" requires an empty body.
func MatchBodyEquals(body []byte, expected *string) bool {
	if expected == nil {
		return true
	}
	return string(body) == *expected
}

// MatchBodyRegexp checks if the request body matches a compiled pattern.
func MatchBodyRegexp(re *regexp.Regexp, body []byte) bool {
	if re == nil {
		return true
	}
	return re.Match(body)
}

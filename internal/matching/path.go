package matching

import (
	"regexp"
	"strconv"
	"strings"
)

// MatchMethod checks if the request method matches.
// An empty expected method matches any method.
func MatchMethod(expected, actual string) bool {
	if expected == "" {
		return true
	}
	return strings.EqualFold(expected, actual)
}

// MatchPath checks if the request path matches the pattern.
// Supports:
//   - Exact match: "/api/users" matches "/api/users"
//   - Wildcard: "/api/users/*" matches "/api/users/123"
//   - Named params: "/api/users/{id}" matches "/api/users/123"
func MatchPath(pattern, path string) bool {
	if pattern == "" || pattern == path {
		return true
	}

	if strings.Contains(pattern, "{") && strings.Contains(pattern, "}") {
		if matchNamedParams(pattern, path) {
			return true
		}
	}

	// Trailing wildcard (e.g., /api/users/*)
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	if strings.Contains(pattern, "*") {
		return matchWildcard(pattern, path)
	}

	return false
}

// matchNamedParams checks if path matches a pattern with named parameters.
// Example: "/users/{id}" matches "/users/123"
func matchNamedParams(pattern, path string) bool {
	patternParts := strings.Split(strings.Trim(pattern, "/"), "/")
	pathParts := strings.Split(strings.Trim(path, "/"), "/")

	if len(patternParts) != len(pathParts) {
		return false
	}

	for i, patternPart := range patternParts {
		if isParam(patternPart) {
			if pathParts[i] == "" {
				return false
			}
			continue
		}
		if patternPart == "*" {
			continue
		}
		if patternPart != pathParts[i] {
			return false
		}
	}

	return true
}

// matchWildcard performs simple wildcard pattern matching.
// * matches any sequence of characters.
func matchWildcard(pattern, path string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == path
	}

	pos := 0
	for i, part := range parts {
		if part == "" {
			continue
		}

		if i == 0 {
			if !strings.HasPrefix(path, part) {
				return false
			}
			pos = len(part)
			continue
		}

		idx := strings.Index(path[pos:], part)
		if idx == -1 {
			return false
		}
		pos += idx + len(part)
	}

	// A pattern not ending in * must consume the whole path.
	if last := parts[len(parts)-1]; last != "" && !strings.HasSuffix(path, last) {
		return false
	}

	return true
}

// MatchPathRegexp checks the path against a compiled regular expression and
// returns the named capture groups. A nil expression matches every path.
func MatchPathRegexp(re *regexp.Regexp, path string) (bool, map[string]string) {
	if re == nil {
		return true, nil
	}

	match := re.FindStringSubmatch(path)
	if match == nil {
		return false, nil
	}

	captures := make(map[string]string)
	for i, name := range re.SubexpNames() {
		if i > 0 && name != "" && i < len(match) {
			captures[name] = match[i]
		}
	}
	return true, captures
}

// PathParams extracts path variables from a path pattern.
// Examples:
//   - pattern "/users/{id}" with path "/users/123" returns {"id": "123"}
//   - pattern "/api/*/items/*" with path "/api/users/items/789" returns {"0": "users", "1": "789"}
func PathParams(pattern, path string) map[string]string {
	result := make(map[string]string)
	if pattern == "" {
		return result
	}

	patternParts := strings.Split(strings.Trim(pattern, "/"), "/")
	pathParts := strings.Split(strings.Trim(path, "/"), "/")

	wildcardIndex := 0
	for i, patternPart := range patternParts {
		if i >= len(pathParts) {
			break
		}

		if isParam(patternPart) {
			result[patternPart[1:len(patternPart)-1]] = pathParts[i]
			continue
		}

		if patternPart == "*" {
			if i == len(patternParts)-1 {
				result[strconv.Itoa(wildcardIndex)] = strings.Join(pathParts[i:], "/")
			} else {
				result[strconv.Itoa(wildcardIndex)] = pathParts[i]
			}
			wildcardIndex++
		}
	}

	return result
}

func isParam(segment string) bool {
	return len(segment) > 2 && strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}")
}

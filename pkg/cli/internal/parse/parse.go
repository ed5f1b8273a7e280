// Package parse provides string parsing utilities for CLI flags.
package parse

import (
	"fmt"
	"strings"
)

// KeyValue splits s at the first of the given delimiters, ':' by default.
func KeyValue(s string, delimiters ...rune) (key, value string, ok bool) {
	if len(delimiters) == 0 {
		delimiters = []rune{':'}
	}

	for i, c := range s {
		for _, d := range delimiters {
			if c == d {
				return s[:i], s[i+1:], true
			}
		}
	}
	return "", "", false
}

// Headers parses "Name: value" flags. Values are trimmed.
func Headers(headers []string) (map[string]string, error) {
	if len(headers) == 0 {
		return nil, nil
	}
	result := make(map[string]string, len(headers))
	for _, h := range headers {
		key, value, ok := KeyValue(h, ':')
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid header %q, expected Name: value", h)
		}
		result[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return result, nil
}

// Query parses "name=value" flags. Repeated names accumulate values.
func Query(params []string) (map[string][]string, error) {
	if len(params) == 0 {
		return nil, nil
	}
	result := make(map[string][]string, len(params))
	for _, p := range params {
		key, value, ok := KeyValue(p, '=')
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid query parameter %q, expected name=value", p)
		}
		result[key] = append(result[key], value)
	}
	return result, nil
}

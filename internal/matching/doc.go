// Package matching provides the per-criterion request predicates used by rules.
//
// Each function answers a single question about an incoming request:
//
//   - Path matching: exact paths, trailing and inline wildcards, {name} segments,
//     and regular expressions with named capture groups
//   - Method matching: case-insensitive HTTP method comparison
//   - Header matching: exact values and simple * wildcard patterns
//   - Query parameter matching: multi-value aware, every expected value must be present
//   - Body matching: exact, contains, regular expression and JSONPath conditions
//
// The predicates are pure and safe for concurrent use. Compilation of regular
// expressions and JSONPath expressions is left to the caller so that rules can
// validate their inputs once, at build time.
package matching

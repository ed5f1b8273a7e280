// Package rule defines request-matching rules for the mock server.
//
// A Rule pairs a request matcher with a canned response and counts the
// requests it was selected for. Rules are built with the fluent Builder:
//
//	r, err := rule.On("GET", "/products").
//		WithQueryParam("store", "default").
//		RespondWith(200).
//		WithJSON(map[string]bool{"ok": true}).
//		ExpectCalls(1).
//		Build()
//
// Rules are immutable once built. Only the invocation counter changes,
// and it is safe to bump and read from many goroutines.
package rule

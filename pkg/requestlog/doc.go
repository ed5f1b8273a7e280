// Package requestlog captures the requests a mock server received so tests
// and the admin API can inspect them.
//
// It is distinct from operational logging, which uses log/slog. Every
// request is journaled, matched or not; unmatched entries carry the
// near-miss explanation of each rule.
//
//	store := requestlog.NewInMemoryStore(1000)
//	store.Log(&requestlog.Entry{Method: "GET", Path: "/products", Status: 200})
//	unmatched := store.List(&requestlog.Filter{Unmatched: true})
package requestlog

// Package admin exposes a running mock server over a small JSON control API
// so rules can be managed from outside the process, e.g. by the CLI or by
// tests written in another language.
//
// Routes:
//
//	GET    /health    liveness and rule count
//	GET    /rules     registered rules with their call counts
//	POST   /rules     add a rule from a rule.Definition (201)
//	DELETE /rules     remove all rules and recorded requests (204)
//	GET    /verify    200 when every expectation holds, 409 with violations
//	GET    /requests  journal, filtered by ?method=&path=&rule=&unmatched=true&limit=
//	DELETE /requests  clear the journal (204)
//
// Client wraps the same routes for Go callers.
package admin

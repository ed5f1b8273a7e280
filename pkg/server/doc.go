// Package server implements the rule-based HTTP/HTTPS mock server.
//
// A Server owns a rule registry and up to two listeners. Every request is
// matched against the rules in insertion order; the first rule that
// accepts it answers and has its invocation counter bumped. Requests no
// rule accepts get the default response, 404 with an empty body unless
// configured otherwise.
//
//	srv, err := server.NewBuilder().
//		WithHTTP().
//		WithRuleBuilders(rule.On("GET", "/products").
//			RespondWith(200).
//			WithJSON(map[string]bool{"ok": true}).
//			ExpectCalls(1)).
//		Build()
//	if err != nil {
//		return err
//	}
//	if err := srv.Start(); err != nil {
//		return err
//	}
//	defer srv.Stop()
//
//	resp, err := srv.Client().Get(srv.URL() + "/products")
//	// ...
//	return srv.Verify()
//
// Lifecycle: a Server starts in StateNew, Start moves it to StateRunning
// and Stop to StateStopped. A stopped server may be started again; rules
// and counters survive the restart, ephemeral ports may change.
package server

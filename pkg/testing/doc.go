// Package testing runs a mock server for the duration of a Go test.
//
// New builds and starts the server and registers its shutdown with
// t.Cleanup, so the listeners are released whether the test passes, fails
// or panics:
//
//	func TestCatalogClient(t *testing.T) {
//	    mock := mstesting.New(t, server.NewBuilder().WithHTTP())
//
//	    mock.AddBuilder(rule.On("POST", "/graphql").
//	        WithBodyJSONPath("$.variables.sku", "MJ01").
//	        RespondWith(200).
//	        WithJSON(map[string]any{"data": map[string]any{"products": []any{}}}).
//	        ExpectCalls(1))
//
//	    client := catalog.New(mock.URL())
//	    // ... exercise client ...
//
//	    mock.AssertVerified(t)
//	    mock.Requests()[0].AssertHeader(t, "Store", "default")
//	}
//
// Outside tests, Run scopes a server to a function call.
package testing

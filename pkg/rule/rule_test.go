package rule

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRequest(method, target, body string) *Request {
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	return NewRequest(r)
}

func mustBuild(t *testing.T, b *Builder) *Rule {
	t.Helper()
	r, err := b.Build()
	require.NoError(t, err)
	return r
}

func TestRuleMatches(t *testing.T) {
	tests := []struct {
		name    string
		builder *Builder
		req     *Request
		want    bool
	}{
		{"empty builder matches all", NewBuilder(), newRequest("DELETE", "/anything", ""), true},
		{"method and path", On("GET", "/products"), newRequest("GET", "/products", ""), true},
		{"method case-insensitive", On("get", "/products"), newRequest("GET", "/products", ""), true},
		{"wrong method", On("POST", "/products"), newRequest("GET", "/products", ""), false},
		{"wrong path", On("GET", "/products"), newRequest("GET", "/orders", ""), false},
		{"path param", On("GET", "/products/{sku}"), newRequest("GET", "/products/MJ01", ""), true},
		{"path wildcard", On("GET", "/api/*"), newRequest("GET", "/api/v1/items", ""), true},
		{
			"path pattern",
			NewBuilder().WithPathPattern(`^/products/(?P<sku>[A-Z]{2}\d+)$`),
			newRequest("GET", "/products/MJ01", ""),
			true,
		},
		{
			"path pattern rejects",
			NewBuilder().WithPathPattern(`^/products/\d+$`),
			newRequest("GET", "/products/MJ01", ""),
			false,
		},
		{
			"query param",
			On("GET", "/search").WithQueryParam("q", "shirt"),
			newRequest("GET", "/search?q=shirt&page=1", ""),
			true,
		},
		{
			"query param multi-value",
			On("GET", "/search").WithQueryParam("tag", "a").WithQueryParam("tag", "b"),
			newRequest("GET", "/search?tag=b&tag=c&tag=a", ""),
			true,
		},
		{
			"query param missing value",
			On("GET", "/search").WithQueryParam("tag", "a", "z"),
			newRequest("GET", "/search?tag=a", ""),
			false,
		},
		{
			"body equals",
			On("POST", "/graphql").WithBody(`{"query":"{ products }"}`),
			newRequest("POST", "/graphql", `{"query":"{ products }"}`),
			true,
		},
		{
			"body contains",
			On("POST", "/graphql").WithBodyContains("products"),
			newRequest("POST", "/graphql", `{"query":"{ categories }"}`),
			false,
		},
		{
			"body pattern",
			NewBuilder().WithBodyPattern(`sku":\s*"MJ\d+`),
			newRequest("POST", "/", `{"sku": "MJ01"}`),
			true,
		},
		{
			"body jsonpath",
			NewBuilder().WithBodyJSONPath("$.variables.sku", "MJ01"),
			newRequest("POST", "/graphql", `{"variables":{"sku":"MJ01"}}`),
			true,
		},
		{
			"body jsonpath on non-json",
			NewBuilder().WithBodyJSONPath("$.variables.sku", "MJ01"),
			newRequest("POST", "/graphql", `sku=MJ01`),
			false,
		},
		{
			"body expr",
			NewBuilder().WithBodyExpr(`method == "POST" && json.variables.qty > 2`),
			newRequest("POST", "/graphql", `{"variables":{"qty":3}}`),
			true,
		},
		{
			"body expr false",
			NewBuilder().WithBodyExpr(`json.variables.qty > 5`),
			newRequest("POST", "/graphql", `{"variables":{"qty":3}}`),
			false,
		},
		{
			"body expr runtime error is no match",
			NewBuilder().WithBodyExpr(`json.variables.qty > 5`),
			newRequest("POST", "/graphql", `not json`),
			false,
		},
		{
			"body func",
			NewBuilder().WithBodyFunc(func(body string) bool { return strings.HasPrefix(body, "{") }),
			newRequest("POST", "/", `{}`),
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := mustBuild(t, tt.builder)
			assert.Equal(t, tt.want, r.Matches(tt.req))
			assert.Equal(t, 0, r.Calls(), "Matches must not count")
		})
	}
}

func TestRuleMatchesHeaders(t *testing.T) {
	r := mustBuild(t, On("POST", "/graphql").
		WithHeader("store", "default").
		WithContentType("application/json*"))

	req := httptest.NewRequest("POST", "/graphql", nil)
	req.Header.Set("Store", "default")
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	assert.True(t, r.Matches(NewRequest(req)))

	req.Header.Set("Store", "german")
	assert.False(t, r.Matches(NewRequest(req)))
}

func TestRuleMismatch(t *testing.T) {
	r := mustBuild(t, On("GET", "/products").WithQueryParam("store", "en"))

	assert.Empty(t, r.Mismatch(newRequest("GET", "/products?store=en", "")))
	assert.Contains(t, r.Mismatch(newRequest("POST", "/products", "")), "method")
	assert.Contains(t, r.Mismatch(newRequest("GET", "/orders", "")), "path")
	assert.Contains(t, r.Mismatch(newRequest("GET", "/products?store=de", "")), "query store")
}

func TestRuleMatchesBodySchema(t *testing.T) {
	r := mustBuild(t, On("POST", "/orders").WithBodySchema(map[string]any{
		"type":     "object",
		"required": []any{"sku"},
		"properties": map[string]any{
			"sku": map[string]any{"type": "string", "pattern": "^MJ"},
		},
	}))

	assert.True(t, r.Matches(newRequest("POST", "/orders", `{"sku":"MJ01"}`)))
	assert.False(t, r.Matches(newRequest("POST", "/orders", `{"sku":"WT09"}`)))
	assert.Contains(t, r.Mismatch(newRequest("POST", "/orders", `{"qty":1}`)), "schema violation")
	assert.Equal(t, "body: not JSON", r.Mismatch(newRequest("POST", "/orders", `sku=MJ01`)))
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name    string
		builder *Builder
	}{
		{"invalid path pattern", NewBuilder().WithPathPattern("(")},
		{"invalid body pattern", NewBuilder().WithBodyPattern("[a-")},
		{"invalid jsonpath", NewBuilder().WithBodyJSONPath("$[invalid", 1)},
		{"invalid expr", NewBuilder().WithBodyExpr("method ==")},
		{"invalid schema", NewBuilder().WithBodySchema(`{"type":`)},
		{"non-bool expr", NewBuilder().WithBodyExpr(`"text"`)},
		{"invalid status", NewBuilder().WithStatus(42)},
		{"negative delay", NewBuilder().WithDelay(-time.Second)},
		{"missing body file", NewBuilder().WithBodyFromFile("/does/not/exist.json")},
		{"invalid expectation", NewBuilder().Expect(Between(3, 1))},
		{"unmarshalable json", NewBuilder().WithJSON(func() {})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder.Build()
			assert.Error(t, err)
		})
	}
}

func TestBuilderFirstErrorWins(t *testing.T) {
	b := NewBuilder().WithStatus(1).WithDelay(-time.Second)
	require.Error(t, b.Err())
	assert.Contains(t, b.Err().Error(), "WithStatus")
}

func TestBuildAssignsIDs(t *testing.T) {
	b := On("GET", "/")
	r1 := mustBuild(t, b)
	r2 := mustBuild(t, b)
	assert.NotEmpty(t, r1.ID)
	assert.NotEqual(t, r1.ID, r2.ID)

	r3 := mustBuild(t, On("GET", "/").WithID("fixed"))
	assert.Equal(t, "fixed", r3.ID)
}

func TestRespond(t *testing.T) {
	r := mustBuild(t, On("GET", "/products").
		RespondWith(http.StatusCreated).
		WithJSON(map[string]bool{"ok": true}).
		WithResponseHeader("x-trace", "abc").
		WithDelay(10*time.Millisecond))

	resp, err := r.Respond(newRequest("GET", "/products", ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Status)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Body))
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "abc", resp.Header.Get("X-Trace"))
	assert.Equal(t, 10*time.Millisecond, resp.Delay)
}

func TestRespondDefaults(t *testing.T) {
	r := mustBuild(t, NewBuilder())
	resp, err := r.Respond(newRequest("GET", "/", ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Empty(t, resp.Body)
}

func TestRespondTemplate(t *testing.T) {
	r := mustBuild(t, On("POST", "/products/{sku}").
		WithTemplate().
		WithResponseBody(`{"sku":"{{request.pathParam.sku}}","store":"{{request.body.store}}"}`).
		WithResponseHeader("Location", "/products/{{request.pathParam.sku}}"))

	resp, err := r.Respond(newRequest("POST", "/products/MJ01", `{"store":"en"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"sku":"MJ01","store":"en"}`, string(resp.Body))
	assert.Equal(t, "/products/MJ01", resp.Header.Get("Location"))

	// The compiled header must not be overwritten by a previous render.
	resp, err = r.Respond(newRequest("POST", "/products/WJ02", `{"store":"de"}`))
	require.NoError(t, err)
	assert.Equal(t, "/products/WJ02", resp.Header.Get("Location"))
}

func TestRespondTemplateNamedGroups(t *testing.T) {
	r := mustBuild(t, NewBuilder().
		WithPathPattern(`^/categories/(?P<id>\d+)$`).
		WithTemplate().
		WithResponseBody(`{{request.pathParam.id}}`))

	resp, err := r.Respond(newRequest("GET", "/categories/42", ""))
	require.NoError(t, err)
	assert.Equal(t, "42", string(resp.Body))
}

func TestRespondErrors(t *testing.T) {
	t.Run("malformed template", func(t *testing.T) {
		r := mustBuild(t, NewBuilder().WithTemplate().WithResponseBody(`{"id":"{{request.path"}`))
		_, err := r.Respond(newRequest("GET", "/", ""))
		assert.Error(t, err)
	})

	t.Run("missing body file", func(t *testing.T) {
		r := mustBuild(t, NewBuilder().WithResponseBodyFromFile(filepath.Join(t.TempDir(), "gone.json")))
		_, err := r.Respond(newRequest("GET", "/", ""))
		assert.Error(t, err)
	})
}

func TestBodyFiles(t *testing.T) {
	dir := t.TempDir()
	reqFile := filepath.Join(dir, "request.json")
	respFile := filepath.Join(dir, "response.json")
	require.NoError(t, os.WriteFile(reqFile, []byte(`{"query":"q"}`), 0o600))
	require.NoError(t, os.WriteFile(respFile, []byte(`{"data":1}`), 0o600))

	r := mustBuild(t, On("POST", "/graphql").
		WithBodyFromFile(reqFile).
		WithResponseBodyFromFile(respFile))

	req := newRequest("POST", "/graphql", `{"query":"q"}`)
	require.True(t, r.Matches(req))
	resp, err := r.Respond(req)
	require.NoError(t, err)
	assert.Equal(t, `{"data":1}`, string(resp.Body))
}

func TestVerify(t *testing.T) {
	r := mustBuild(t, On("GET", "/products").Named("products").ExpectCalls(2))
	r.Record()

	err := r.Verify()
	var v *Violation
	require.True(t, errors.As(err, &v))
	assert.Equal(t, r.ID, v.RuleID)
	assert.Equal(t, "products", v.Rule)
	assert.Equal(t, 1, v.Observed)
	assert.Equal(t, "exactly 2", v.Expected.String())

	r.Record()
	assert.NoError(t, r.Verify())

	r.ResetCalls()
	assert.Equal(t, 0, r.Calls())
}

func TestVerifyUnconstrained(t *testing.T) {
	r := mustBuild(t, On("GET", "/").ExpectCalls(0))
	assert.Nil(t, r.Expectation())
	r.Record()
	assert.NoError(t, r.Verify())

	never := mustBuild(t, On("GET", "/").Expect(Never()))
	assert.NoError(t, never.Verify())
	never.Record()
	assert.Error(t, never.Verify())
}

func TestRecordConcurrent(t *testing.T) {
	r := mustBuild(t, NewBuilder())
	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Record()
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, r.Calls())
}

func TestRuleString(t *testing.T) {
	assert.Equal(t, "GET /products", mustBuild(t, On("GET", "/products")).String())
	assert.Equal(t, "* *", mustBuild(t, NewBuilder()).String())
	assert.Equal(t, "named", mustBuild(t, NewBuilder().Named("named")).String())
}

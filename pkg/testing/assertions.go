package testing

import (
	"encoding/json"
	"net/url"
	"reflect"
	"strings"
	"testing"

	"github.com/commerce-it/mockserver/internal/matching"
	"github.com/commerce-it/mockserver/pkg/requestlog"
)

// RequestLog is a recorded request with assertion helpers.
type RequestLog struct {
	Method      string
	Path        string
	Headers     map[string][]string
	Body        string
	QueryString string
	// MatchedRuleID is empty when no rule matched.
	MatchedRuleID string
	Status        int
}

func newRequestLog(e *requestlog.Entry) *RequestLog {
	return &RequestLog{
		Method:        e.Method,
		Path:          e.Path,
		Headers:       e.Headers,
		Body:          e.Body,
		QueryString:   e.QueryString,
		MatchedRuleID: e.MatchedRuleID,
		Status:        e.Status,
	}
}

// Header returns the first value of the named header, case-insensitively.
func (r *RequestLog) Header(key string) (string, bool) {
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) && len(v) > 0 {
			return v[0], true
		}
	}
	return "", false
}

// AssertMethod asserts that the request used the expected HTTP method.
func (r *RequestLog) AssertMethod(t testing.TB, expected string) {
	t.Helper()
	if !strings.EqualFold(r.Method, expected) {
		t.Errorf("request method mismatch\nexpected: %q\nactual: %q", expected, r.Method)
	}
}

// AssertPath asserts that the request path matches.
func (r *RequestLog) AssertPath(t testing.TB, expected string) {
	t.Helper()
	if r.Path != expected {
		t.Errorf("request path mismatch\nexpected: %q\nactual: %q", expected, r.Path)
	}
}

// AssertHeader asserts that the request had the header with the expected value.
func (r *RequestLog) AssertHeader(t testing.TB, key, expected string) {
	t.Helper()

	actual, ok := r.Header(key)
	if !ok {
		t.Errorf("request does not have header %q", key)
		return
	}
	if actual != expected {
		t.Errorf("header %q value mismatch\nexpected: %q\nactual: %q", key, expected, actual)
	}
}

// AssertQueryParam asserts that the request had the query parameter with
// the expected value among its values.
func (r *RequestLog) AssertQueryParam(t testing.TB, key, expected string) {
	t.Helper()

	params, err := url.ParseQuery(r.QueryString)
	if err != nil {
		t.Errorf("request has malformed query string %q: %v", r.QueryString, err)
		return
	}
	values, ok := params[key]
	if !ok {
		t.Errorf("request does not have query parameter %q", key)
		return
	}
	for _, v := range values {
		if v == expected {
			return
		}
	}
	t.Errorf("query parameter %q value mismatch\nexpected: %q\nactual: %q", key, expected, values)
}

// AssertBody asserts that the request body exactly matches the expected string.
func (r *RequestLog) AssertBody(t testing.TB, expected string) {
	t.Helper()
	if r.Body != expected {
		t.Errorf("request body does not match\nexpected: %q\nactual: %q", expected, r.Body)
	}
}

// AssertBodyContains asserts that the request body contains the expected substring.
func (r *RequestLog) AssertBodyContains(t testing.TB, substr string) {
	t.Helper()
	if !strings.Contains(r.Body, substr) {
		t.Errorf("request body does not contain %q\nbody: %s", substr, r.Body)
	}
}

// AssertJSONBody asserts that the request body is JSON equal to expected.
// The expected value can be a string, []byte, or any value that will be JSON encoded.
func (r *RequestLog) AssertJSONBody(t testing.TB, expected any) {
	t.Helper()

	var raw []byte
	switch v := expected.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			t.Errorf("failed to marshal expected value: %v", err)
			return
		}
		raw = data
	}

	var expectedJSON, actualJSON any
	if err := json.Unmarshal(raw, &expectedJSON); err != nil {
		t.Errorf("failed to parse expected JSON: %v", err)
		return
	}
	if err := json.Unmarshal([]byte(r.Body), &actualJSON); err != nil {
		t.Errorf("request body is not valid JSON: %v\nbody: %s", err, r.Body)
		return
	}

	if !reflect.DeepEqual(actualJSON, expectedJSON) {
		expectedBytes, _ := json.MarshalIndent(expectedJSON, "", "  ")
		actualBytes, _ := json.MarshalIndent(actualJSON, "", "  ")
		t.Errorf("request body does not match expected JSON\nexpected:\n%s\nactual:\n%s",
			expectedBytes, actualBytes)
	}
}

// JSONField looks up a dot-separated field in the JSON body, e.g.
// "variables.sku". Returns nil when the body is not JSON or the field is
// missing.
func (r *RequestLog) JSONField(field string) any {
	var data any
	if err := json.Unmarshal([]byte(r.Body), &data); err != nil {
		return nil
	}
	v, found, err := matching.Lookup("$."+field, data)
	if err != nil || !found {
		return nil
	}
	return v
}

// AssertJSONField asserts that a JSON field in the request body has the expected value.
func (r *RequestLog) AssertJSONField(t testing.TB, field string, expected any) {
	t.Helper()

	actual := r.JSONField(field)
	if actual == nil {
		t.Errorf("JSON field %q not found in request body: %s", field, r.Body)
		return
	}
	if !reflect.DeepEqual(actual, expected) {
		t.Errorf("JSON field %q mismatch\nexpected: %v (%T)\nactual: %v (%T)",
			field, expected, expected, actual, actual)
	}
}

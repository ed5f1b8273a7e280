package rule

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/commerce-it/mockserver/internal/matching"
)

// matcher holds the compiled request criteria of a rule.
// Zero-valued criteria accept every request.
type matcher struct {
	method       string
	path         string
	pathRegex    *regexp.Regexp
	headers      map[string]string
	query        map[string][]string
	bodyEquals   *string
	bodyContains string
	bodyRegex    *regexp.Regexp
	jsonPath     []matching.JSONPathCondition
	bodySchema   *jsonschema.Schema
	bodyExpr     *vm.Program
	bodyExprSrc  string
	bodyFunc     func(body string) bool
}

// exprEnv is the environment visible to body expressions.
type exprEnv struct {
	Method  string            `expr:"method"`
	Path    string            `expr:"path"`
	Body    string            `expr:"body"`
	JSON    any               `expr:"json"`
	Query   map[string]string `expr:"query"`
	Headers map[string]string `expr:"headers"`
}

// criterion names, in evaluation order.
const (
	critMethod       = "method"
	critPath         = "path"
	critPathPattern  = "pathPattern"
	critHeaders      = "headers"
	critQuery        = "query"
	critBody         = "body"
	critBodyContains = "bodyContains"
	critBodyPattern  = "bodyPattern"
	critBodyJSONPath = "bodyJsonPath"
	critBodySchema   = "bodySchema"
	critBodyExpr     = "bodyExpr"
	critBodyFunc     = "bodyFunc"
)

// failing returns the first criterion that rejects req, or "" when all pass.
func (m *matcher) failing(req *Request) string {
	if !matching.MatchMethod(m.method, req.Method()) {
		return critMethod
	}
	if !matching.MatchPath(m.path, req.Path()) {
		return critPath
	}
	if ok, _ := matching.MatchPathRegexp(m.pathRegex, req.Path()); !ok {
		return critPathPattern
	}
	if !matching.MatchHeaders(m.headers, req.Header()) {
		return critHeaders
	}
	if !matching.MatchQueryParams(m.query, req.Query()) {
		return critQuery
	}

	// Body criteria last so rules rejected on the request line never read it.
	if m.bodyEquals != nil && !matching.MatchBodyEquals(req.Body(), m.bodyEquals) {
		return critBody
	}
	if !matching.MatchBodyContains(req.Body(), m.bodyContains) {
		return critBodyContains
	}
	if !matching.MatchBodyRegexp(m.bodyRegex, req.Body()) {
		return critBodyPattern
	}
	if len(m.jsonPath) > 0 && !matching.MatchJSONPath(m.jsonPath, req.JSON()) {
		return critBodyJSONPath
	}
	if !matching.MatchBodySchema(m.bodySchema, req.JSON()) {
		return critBodySchema
	}
	if m.bodyExpr != nil && !m.evalExpr(req) {
		return critBodyExpr
	}
	if m.bodyFunc != nil && !m.bodyFunc(req.BodyString()) {
		return critBodyFunc
	}
	return ""
}

func (m *matcher) evalExpr(req *Request) bool {
	env := exprEnv{
		Method:  req.Method(),
		Path:    req.Path(),
		Body:    req.BodyString(),
		JSON:    req.JSON(),
		Query:   firstValues(req.Query()),
		Headers: lowerFirstValues(req.Header()),
	}
	out, err := expr.Run(m.bodyExpr, env)
	if err != nil {
		return false
	}
	ok, _ := out.(bool)
	return ok
}

// describe explains why criterion rejected req.
func (m *matcher) describe(criterion string, req *Request) string {
	switch criterion {
	case critMethod:
		return fmt.Sprintf("method: expected %s, got %s", m.method, req.Method())
	case critPath:
		return fmt.Sprintf("path: expected %s, got %s", m.path, req.Path())
	case critPathPattern:
		return fmt.Sprintf("path: %s does not match pattern %s", req.Path(), m.pathRegex)
	case critHeaders:
		for _, name := range sortedKeys(m.headers) {
			if !matching.MatchHeaderPattern(name, m.headers[name], req.Header()) {
				return fmt.Sprintf("header %s: expected %q, got %q", name, m.headers[name], req.Header().Get(name))
			}
		}
	case critQuery:
		for _, name := range sortedKeys(m.query) {
			if !matching.MatchQueryParam(name, m.query[name], req.Query()) {
				return fmt.Sprintf("query %s: expected %v, got %v", name, m.query[name], req.Query()[name])
			}
		}
	case critBody:
		return "body: not equal to expected body"
	case critBodyContains:
		return fmt.Sprintf("body: does not contain %q", m.bodyContains)
	case critBodyPattern:
		return fmt.Sprintf("body: does not match pattern %s", m.bodyRegex)
	case critBodyJSONPath:
		if req.JSON() == nil {
			return "body: not JSON"
		}
		for _, c := range m.jsonPath {
			if !c.Match(req.JSON()) {
				return fmt.Sprintf("body: %s does not equal %v", c.Path, c.Expected)
			}
		}
	case critBodySchema:
		if req.JSON() == nil {
			return "body: not JSON"
		}
		return "body: schema violation: " + matching.SchemaViolation(m.bodySchema, req.JSON())
	case critBodyExpr:
		return fmt.Sprintf("body: expression %q is false", m.bodyExprSrc)
	case critBodyFunc:
		return "body: rejected by predicate"
	}
	return criterion
}

func firstValues(values map[string][]string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

func lowerFirstValues(values map[string][]string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			out[strings.ToLower(k)] = v[0]
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
